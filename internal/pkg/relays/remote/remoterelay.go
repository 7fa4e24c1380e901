/*
	Copyright 2024 Alexander Vollschwitz <xelalex@gmx.net>

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	  http://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package remote

import (
	"context"
	"fmt"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
)

//
const RelayID = "remote"

// artifact is either a single image or an index, as fetched from the source.
type artifact struct {
	image v1.Image
	index v1.ImageIndex
}

// RemoteRelay talks to the registries directly, without a local daemon.
// Pulling only fetches manifests, layers are streamed from source to target
// during push.
type RemoteRelay struct {
	settings *relays.Settings
	pulled   map[string]*artifact
}

//
func NewRemoteRelay() *RemoteRelay {
	return &RemoteRelay{
		settings: &relays.Settings{},
		pulled:   make(map[string]*artifact),
	}
}

//
func (r *RemoteRelay) Prepare() error {
	log.Infof("%s relay ready", RelayID)
	return nil
}

//
func (r *RemoteRelay) Dispose() {
	r.pulled = make(map[string]*artifact)
}

//
func (r *RemoteRelay) Configure(s *relays.Settings) {
	if s == nil {
		s = &relays.Settings{}
	}
	r.settings = s
}

//
func (r *RemoteRelay) Pull(ctx context.Context, ref *reference.Reference,
	allTags bool) error {

	if !allTags {
		return r.pull(ctx, ref)
	}

	tags, err := r.ListTags(ctx, ref)
	if err != nil {
		return err
	}
	for _, t := range tags {
		tagged, err := ref.WithTag(t)
		if err != nil {
			return err
		}
		if err := r.pull(ctx, tagged); err != nil {
			return err
		}
	}
	return nil
}

//
func (r *RemoteRelay) pull(ctx context.Context, ref *reference.Reference) error {

	nameRef, err := toName(ref, r.settings.Source)
	if err != nil {
		return err
	}

	opts := options(ctx, r.settings.Source)
	platform := r.settings.PlatformSpec()
	if platform != nil {
		opts = append(opts, remote.WithPlatform(v1.Platform{
			OS:           platform.OS,
			Architecture: platform.Architecture,
			Variant:      platform.Variant,
		}))
	}

	desc, err := remote.Get(nameRef, opts...)
	if err != nil {
		return err
	}

	a := &artifact{}
	if desc.MediaType.IsIndex() && platform == nil {
		a.index, err = desc.ImageIndex()
	} else {
		a.image, err = desc.Image()
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"ref":    ref,
		"digest": desc.Digest.String(),
	}).Debug("fetched manifest")

	r.pulled[ref.Name()] = a
	return nil
}

//
func (r *RemoteRelay) Retag(ctx context.Context, old,
	new *reference.Reference) (bool, error) {

	a, ok := r.pulled[old.Name()]
	if !ok {
		return false, nil
	}
	r.pulled[new.Name()] = a
	return true, nil
}

//
func (r *RemoteRelay) Push(ctx context.Context, ref *reference.Reference) error {

	a, ok := r.pulled[ref.Name()]
	if !ok {
		return fmt.Errorf("%w: '%s'", relays.ErrNotAvailable, ref)
	}

	nameRef, err := toName(ref, r.settings.Target)
	if err != nil {
		return err
	}

	opts := options(ctx, r.settings.Target)
	if a.index != nil {
		err = remote.WriteIndex(nameRef, a.index, opts...)
	} else {
		err = remote.Write(nameRef, a.image, opts...)
	}

	if err == nil {
		delete(r.pulled, ref.Name())
		if r.settings.Verbose {
			log.WithField("ref", ref).Info("pushed")
		}
	}
	return err
}

//
func (r *RemoteRelay) ListTags(ctx context.Context, ref *reference.Reference) (
	[]string, error) {
	return ListTags(ctx, ref, r.settings.Source)
}

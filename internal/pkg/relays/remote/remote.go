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
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
)

// ListTags lists all tags of ref's repository, using the access settings of
// ep. The other relays use this as well, since the Docker daemon has no way
// of listing tags.
func ListTags(ctx context.Context, ref *reference.Reference,
	ep relays.Endpoint) ([]string, error) {

	repo, err := name.NewRepository(ref.NameWithoutTag(), nameOptions(ep)...)
	if err != nil {
		return nil, fmt.Errorf("invalid repository '%s': %v",
			ref.NameWithoutTag(), err)
	}

	tags, err := remote.List(repo, options(ctx, ep)...)
	if err != nil {
		return nil, fmt.Errorf("error listing tags of '%s': %v", repo, err)
	}

	log.WithField("repo", repo.String()).Debugf("listed %d tags", len(tags))
	return tags, nil
}

//
func toName(ref *reference.Reference, ep relays.Endpoint) (
	name.Reference, error) {
	ret, err := name.ParseReference(ref.Name(), nameOptions(ep)...)
	if err != nil {
		return nil, fmt.Errorf("invalid reference '%s': %v", ref, err)
	}
	return ret, nil
}

//
func nameOptions(ep relays.Endpoint) []name.Option {
	var opts []name.Option
	if ep.SkipTLSVerify {
		opts = append(opts, name.Insecure)
	}
	return opts
}

//
func options(ctx context.Context, ep relays.Endpoint) []remote.Option {

	opts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuth(authenticator(ep)),
	}

	if ep.SkipTLSVerify {
		tr := remote.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		opts = append(opts, remote.WithTransport(tr))
	}

	return opts
}

//
func authenticator(ep relays.Endpoint) authn.Authenticator {
	if ep.Creds == nil || ep.Creds.IsEmpty() {
		return authn.Anonymous
	}
	return &authn.Basic{
		Username: ep.Creds.Username(),
		Password: ep.Creds.Password(),
	}
}

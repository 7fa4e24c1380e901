/*
	Copyright 2020 Alexander Vollschwitz <xelalex@gmx.net>

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

package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
	"github.com/xelalexv/imagekit/internal/pkg/relays/remote"
)

//
const RelayID = "docker"

//
type RelayConfig struct {
	DockerHost string `yaml:"dockerhost"`
	APIVersion string `yaml:"api-version"`
}

// DockerRelay transfers images through a Docker daemon.
type DockerRelay struct {
	client   *dockerClient
	settings *relays.Settings
}

// NewDockerRelay creates a relay for the daemon given in conf. Without
// dockerhost, the daemon is taken from the environment (DOCKER_HOST etc.),
// without api-version, the version is negotiated.
func NewDockerRelay(conf *RelayConfig, out io.Writer) (*DockerRelay, error) {

	relay := &DockerRelay{settings: &relays.Settings{}}

	var dockerHost, apiVersion string
	if conf != nil {
		dockerHost = conf.DockerHost
		apiVersion = conf.APIVersion
	}

	cli, err := newClient(dockerHost, apiVersion, out)
	if err != nil {
		return nil, fmt.Errorf("cannot create Docker client: %v", err)
	}

	relay.client = cli
	return relay, nil
}

//
func (r *DockerRelay) Prepare() error {

	// Docker daemon may not be ready yet, e.g. when running side by side with
	// a Docker-in-Docker container inside a pod on k8s
	log.Info("pinging Docker daemon...")

	if _, err := r.client.ping(context.Background(), 30, 10*time.Second); err != nil {
		return err
	}

	log.Infof("ok, %s relay ready", RelayID)
	return nil
}

//
func (r *DockerRelay) Dispose() {
	if err := r.client.close(); err != nil {
		log.Warnf("error closing Docker client: %v", err)
	}
}

//
func (r *DockerRelay) Configure(s *relays.Settings) {
	if s == nil {
		s = &relays.Settings{}
	}
	r.settings = s
}

// Pull pulls ref. With allTags set, all tags of ref's repository are pulled.
func (r *DockerRelay) Pull(ctx context.Context, ref *reference.Reference,
	allTags bool) error {

	name := ref.Name()
	if allTags {
		name = ref.NameWithoutTag()
	} else if _, err := ref.Named(); err != nil {
		return err
	}

	log.WithFields(log.Fields{"ref": name, "all-tags": allTags}).Info(
		"pulling image")

	return r.client.pullImage(ctx, name, allTags, daemonPlatform(r.settings),
		r.settings.Source.Creds, r.settings.Verbose)
}

// Retag tags the local image old as new. Targets with a digest cannot be
// tagged.
func (r *DockerRelay) Retag(ctx context.Context, old,
	new *reference.Reference) (bool, error) {

	if new.HasDigest() {
		return false, relays.ErrDigestTarget
	}

	ok, err := r.client.hasImage(ctx, old.Name())
	if err != nil || !ok {
		return false, err
	}

	target, err := new.Named()
	if err != nil {
		return false, err
	}

	log.WithFields(log.Fields{"source": old, "target": target}).Debug(
		"tagging image")
	if err := r.client.tagImage(ctx, old.Name(), target.String()); err != nil {
		return false, err
	}
	return true, nil
}

//
func (r *DockerRelay) Push(ctx context.Context, ref *reference.Reference) error {

	if ref.HasDigest() {
		return relays.ErrDigestTarget
	}

	log.WithField("ref", ref).Info("pushing image")
	return r.client.pushImage(ctx, ref.Name(), r.settings.PlatformSpec(),
		r.settings.Target.Creds, r.settings.Verbose)
}

// ListTags lists tags directly from the source registry, since the daemon
// cannot.
func (r *DockerRelay) ListTags(ctx context.Context, ref *reference.Reference) (
	[]string, error) {
	return remote.ListTags(ctx, ref, r.settings.Source)
}

// daemonPlatform returns the platform to pass to the daemon on pull. The
// daemon does not know about "all", it always pulls a single platform.
func daemonPlatform(s *relays.Settings) string {
	return relays.PlatformString(s.PlatformSpec())
}

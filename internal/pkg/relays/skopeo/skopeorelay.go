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

package skopeo

import (
	"bytes"
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
)

//
const RelayID = "skopeo"

//
type RelayConfig struct {
	Binary   string `yaml:"binary"`
	CertsDir string `yaml:"certs-dir"`
}

// SkopeoRelay defers all transfers until push, since skopeo copies directly
// from registry to registry. Pull only checks that the source image exists,
// retagging records under which name it is to be pushed.
type SkopeoRelay struct {
	runner   *runner
	settings *relays.Settings
	pulled   map[string]*reference.Reference
}

//
func NewSkopeoRelay(conf *RelayConfig, out io.Writer) *SkopeoRelay {

	relay := &SkopeoRelay{
		runner: &runner{
			binary:   defaultSkopeoBinary,
			certsDir: defaultCertsBaseDir,
			out:      out,
		},
		settings: &relays.Settings{},
		pulled:   make(map[string]*reference.Reference),
	}

	if conf != nil {
		if conf.Binary != "" {
			relay.runner.binary = conf.Binary
		}
		if conf.CertsDir != "" {
			relay.runner.certsDir = conf.CertsDir
		}
	}

	return relay
}

//
func (r *SkopeoRelay) Prepare() error {

	bufOut := new(bytes.Buffer)
	if err := r.runner.run(
		context.Background(), bufOut, nil, true, "--version"); err != nil {
		return fmt.Errorf("cannot execute skopeo: %v", err)
	}

	log.Info(bufOut.String())
	log.WithField("relay", RelayID).Info("relay ready")

	return nil
}

//
func (r *SkopeoRelay) Dispose() {
	r.pulled = make(map[string]*reference.Reference)
}

//
func (r *SkopeoRelay) Configure(s *relays.Settings) {
	if s == nil {
		s = &relays.Settings{}
	}
	r.settings = s
}

//
func (r *SkopeoRelay) Pull(ctx context.Context, ref *reference.Reference,
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
func (r *SkopeoRelay) pull(ctx context.Context, ref *reference.Reference) error {

	digest, err := r.runner.inspect(ctx, ref.Name(),
		r.settings.PlatformSpec(), "{{.Digest}}", r.settings.Source)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"ref": ref, "digest": digest}).Debug(
		"source image found")
	r.pulled[ref.Name()] = ref
	return nil
}

//
func (r *SkopeoRelay) Retag(ctx context.Context, old,
	new *reference.Reference) (bool, error) {

	src, ok := r.pulled[old.Name()]
	if !ok {
		return false, nil
	}
	if new.HasDigest() {
		return false, relays.ErrDigestTarget
	}
	r.pulled[new.Name()] = src
	return true, nil
}

//
func (r *SkopeoRelay) Push(ctx context.Context, ref *reference.Reference) error {

	src, ok := r.pulled[ref.Name()]
	if !ok {
		return fmt.Errorf("%w: '%s'", relays.ErrNotAvailable, ref)
	}

	log.WithFields(log.Fields{
		"source":   src,
		"target":   ref,
		"platform": r.settings.Platform,
	}).Info("copying image")

	args := r.copyArgs(src, ref)
	if err := r.runner.run(ctx, r.runner.out, r.runner.out,
		r.settings.Verbose, args...); err != nil {
		return fmt.Errorf("skopeo copy failed: %v", err)
	}

	delete(r.pulled, ref.Name())
	return nil
}

//
func (r *SkopeoRelay) copyArgs(src, trgt *reference.Reference) []string {

	cmd := []string{
		"--insecure-policy",
		"copy",
	}

	if src.HasDigest() {
		cmd = append(cmd, "--preserve-digests=true")
	}

	if r.settings.Source.SkipTLSVerify {
		cmd = append(cmd, "--src-tls-verify=false")
	}
	if r.settings.Target.SkipTLSVerify {
		cmd = append(cmd, "--dest-tls-verify=false")
	}

	cmd = append(cmd,
		fmt.Sprintf("--src-cert-dir=%s",
			r.runner.certsDirForRegistry(src.Host())),
		fmt.Sprintf("--dest-cert-dir=%s",
			r.runner.certsDirForRegistry(trgt.Host())))

	if c := r.settings.Source.Creds; c != nil && !c.IsEmpty() {
		cmd = append(cmd, fmt.Sprintf("--src-creds=%s", c.UserPass()))
	}
	if c := r.settings.Target.Creds; c != nil && !c.IsEmpty() {
		cmd = append(cmd, fmt.Sprintf("--dest-creds=%s", c.UserPass()))
	}

	switch r.settings.Platform {
	case "":
	case "all":
		cmd = append(cmd, "--all")
	default:
		cmd = addPlatformOverrides(cmd, r.settings.PlatformSpec())
	}

	return append(cmd, "docker://"+src.Name(), "docker://"+trgt.Name())
}

//
func (r *SkopeoRelay) ListTags(ctx context.Context, ref *reference.Reference) (
	[]string, error) {
	return r.runner.listAllTags(ctx, ref.NameWithoutTag(), r.settings.Source)
}

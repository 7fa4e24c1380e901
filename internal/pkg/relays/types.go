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

package relays

import (
	"context"
	"errors"
	"fmt"
	"strings"

	spec "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/auth"
	"github.com/xelalexv/imagekit/internal/pkg/reference"
)

var (
	// ErrNotAvailable is returned when an image to retag or push has not been
	// pulled.
	ErrNotAvailable = errors.New("image not available")
	// ErrDigestTarget is returned by relays that cannot address a target
	// image by digest.
	ErrDigestTarget = errors.New("relay cannot push to a digest reference")
)

// Relay moves images from a source to a target registry. Relays are not safe
// for concurrent use, calls for one task are made one after the other.
type Relay interface {
	Prepare() error
	Dispose()
	// Configure sets the access settings for the following calls.
	Configure(s *Settings)
	Pull(ctx context.Context, ref *reference.Reference, allTags bool) error
	// Retag makes the image pulled for old available as new. It returns
	// false if old is not available.
	Retag(ctx context.Context, old, new *reference.Reference) (bool, error)
	Push(ctx context.Context, ref *reference.Reference) error
	// ListTags lists the tags of ref's repository in the source registry.
	ListTags(ctx context.Context, ref *reference.Reference) ([]string, error)
}

// Endpoint holds the access settings for one side of a transfer.
type Endpoint struct {
	Creds         *auth.Credentials
	SkipTLSVerify bool
}

//
type Settings struct {
	Source   Endpoint
	Target   Endpoint
	Platform string
	Verbose  bool
}

// PlatformSpec returns the configured platform, nil for all platforms.
func (s *Settings) PlatformSpec() *spec.Platform {
	if s == nil {
		return nil
	}
	return ParsePlatform(s.Platform)
}

// Transfer pulls src, retags it as dst, and pushes dst.
func Transfer(ctx context.Context, r Relay, src, dst *reference.Reference) error {
	log.WithFields(log.Fields{"source": src, "target": dst}).Debug("pulling")
	if err := r.Pull(ctx, src, false); err != nil {
		return fmt.Errorf("error pulling '%s': %v", src, err)
	}
	return Publish(ctx, r, src, dst)
}

// Publish retags the already pulled src as dst, and pushes dst.
func Publish(ctx context.Context, r Relay, src, dst *reference.Reference) error {

	logger := log.WithFields(log.Fields{"source": src, "target": dst})

	logger.Debug("retagging")
	if ok, err := r.Retag(ctx, src, dst); err != nil {
		return fmt.Errorf("error retagging '%s' as '%s': %v", src, dst, err)
	} else if !ok {
		return fmt.Errorf("%w: '%s'", ErrNotAvailable, src)
	}

	logger.Debug("pushing")
	if err := r.Push(ctx, dst); err != nil {
		return fmt.Errorf("error pushing '%s': %v", dst, err)
	}

	return nil
}

// ParsePlatform turns os[/arch[/variant]] into a platform spec. An empty
// string or "all" yield nil.
func ParsePlatform(p string) *spec.Platform {

	if p == "all" {
		return nil
	}

	var ret *spec.Platform

	if parts := strings.Split(p, "/"); len(parts) > 0 && parts[0] != "" {
		ret = &spec.Platform{OS: parts[0]}
		if len(parts) > 1 && parts[1] != "" {
			ret.Architecture = parts[1]
			if len(parts) > 2 && parts[2] != "" {
				ret.Variant = parts[2]
			}
		}
	}

	return ret
}

// PlatformString is the inverse of ParsePlatform.
func PlatformString(p *spec.Platform) string {
	if p == nil {
		return ""
	}
	ret := p.OS
	if p.Architecture != "" {
		ret += "/" + p.Architecture
		if p.Variant != "" {
			ret += "/" + p.Variant
		}
	}
	return ret
}

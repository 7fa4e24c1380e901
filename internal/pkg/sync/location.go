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

package sync

import (
	"errors"
	"fmt"

	gocrname "github.com/google/go-containerregistry/pkg/name"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/auth"
	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/registry"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
)

// Location describes one side of a task. For the source, registry and
// namespace come from the image references, so only access settings apply.
type Location struct {
	Registry      string `yaml:"registry"`
	Namespace     string `yaml:"namespace"`
	Auth          string `yaml:"auth"`
	SkipTLSVerify bool   `yaml:"skip-tls-verify"`
	//
	creds *auth.Credentials
}

//
func (l *Location) validate(isTarget bool) error {

	if l == nil {
		return errors.New("location is nil")
	}

	if isTarget {
		if l.Registry == "" {
			return errors.New("registry not set")
		}
		// any URI authority, IP addresses and single label hosts included
		if _, err := gocrname.NewRegistry(l.Registry); err != nil {
			return fmt.Errorf("'%s' is not a valid registry host: %v",
				l.Registry, err)
		}
		if l.Namespace != "" && !reference.IsValidRepositoryName(l.Namespace) {
			return fmt.Errorf("invalid namespace '%s'", l.Namespace)
		}

	} else if l.Registry != "" || l.Namespace != "" {
		log.Warn("registry and namespace of a task's source are ignored, " +
			"they are taken from the image list")
	}

	// move Auth into credentials
	crd, err := auth.NewCredentialsFromAuth(l.Auth)
	if err != nil {
		return fmt.Errorf("invalid auth: %v", err)
	}
	l.creds = crd
	l.Auth = ""

	return nil
}

//
func (l *Location) endpoint() relays.Endpoint {
	return relays.Endpoint{Creds: l.creds, SkipTLSVerify: l.SkipTLSVerify}
}

// mapRef returns the reference under which src is pushed to this location.
func (l *Location) mapRef(src *reference.Reference) (*reference.Reference,
	error) {
	return src.Rebase(l.Registry, l.Namespace)
}

//
func (l *Location) IsECR() bool {
	ecr, _, _, _ := registry.IsECR(l.Registry)
	return ecr
}

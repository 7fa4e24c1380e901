/*
	Copyright 2023

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

/*
	An image digest is formated like this:
	sha256:f271e74b17ced29b915d351685fd4644785c6d1559dd1f2d4189a5e851ef753a

	Only sha256 is accepted, and only in lowercase. Tools like skopeo reject
	references carrying both a tag and a digest, so a digest always stands
	on its own in a reference.
*/

package digests

import (
	"fmt"
	"regexp"

	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// Length of a valid digest string, algorithm prefix included
const Length = len(Prefix) + 64

//
const Prefix = "sha256:"

var digestRegex = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)

// Validate checks whether d is a well formed sha256 digest and returns it in
// parsed form.
func Validate(d string) (digest.Digest, error) {

	if len(d) != Length || !digestRegex.MatchString(d) {
		log.Debugf("wrong digest format: %v", d)
		return "", fmt.Errorf("bad format, want '%s' followed by 64 "+
			"lowercase hex characters: '%s'", Prefix, d)
	}

	ret, err := digest.Parse(d)
	if err != nil {
		return "", err
	}

	if ret.Algorithm() != digest.SHA256 {
		return "", fmt.Errorf("unsupported digest algorithm '%s'",
			ret.Algorithm())
	}

	return ret, nil
}

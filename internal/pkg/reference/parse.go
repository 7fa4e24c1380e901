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

package reference

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Parse parses a reference string:
//
//	[registry_host[:port]/][namespace/]repository[:<tags>|@sha256:<digest>]
//
// where tags is a comma separated list <tag1>[,<tag2>[,...]]. The first tag
// becomes the tag of the reference, the others become its extra tags.
func Parse(s string) (*Reference, error) {

	var host, namespace, short string

	parts := strings.Split(s, "/")

	switch len(parts) {

	case 1:
		short = parts[0]

	case 2:
		if IsRegistryHost(parts[0]) {
			host = parts[0]
		} else {
			namespace = parts[0]
		}
		short = parts[1]

	case 3:
		host, namespace, short = parts[0], parts[1], parts[2]

	default:
		return nil, fmt.Errorf("%w: '%s' has more than three path segments",
			ErrInvalidReference, s)
	}

	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: '%s' has empty path segment",
				ErrInvalidReference, s)
		}
	}

	repository, tag, digest, extraTags, err := parseShortName(short)
	if err != nil {
		return nil, err
	}

	if !IsValidRepositoryName(repository) {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidRepository, repository)
	}

	ret, err := New(repository, WithHost(host), WithNamespace(namespace),
		WithTag(tag), WithDigest(digest), WithExtraTags(extraTags...))
	if err != nil {
		return nil, err
	}

	log.WithField("ref", s).Tracef("parsed as %#v", ret)
	return ret, nil
}

// MustParse is like Parse, but panics on error. Use it only for references
// known to be valid, e.g. constants.
func MustParse(s string) *Reference {
	ret, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ret
}

// parseShortName splits repository[:<tags>|@sha256:<digest>]
func parseShortName(s string) (repository, tag, digest string,
	extraTags []string, err error) {

	if ix := strings.Index(s, "@"); ix > -1 {
		repository, digest = s[:ix], s[ix+1:]
		err = validateDigest(digest)
		return
	}

	ix := strings.Index(s, ":")
	if ix == -1 {
		repository = s
		return
	}

	repository = s[:ix]
	tags := strings.Split(s[ix+1:], ",")
	for i := range tags {
		tags[i] = strings.TrimSpace(tags[i])
		if tags[i] == "" {
			err = fmt.Errorf("%w: empty tag in '%s'", ErrInvalidReference, s)
			return
		}
	}

	tag = tags[0]
	if len(tags) > 1 {
		extraTags = tags[1:]
	}
	return
}

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
	"net/url"
	"regexp"

	distref "github.com/distribution/reference"

	"github.com/xelalexv/imagekit/internal/pkg/digests"
)

var (
	domainRegex = regexp.MustCompile(
		`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9][a-z0-9-]{0,61}[a-z0-9]$`)
	domainWithPortRegex = regexp.MustCompile(
		`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9][a-z0-9-]{0,61}[a-z0-9]:[0-9]+$`)
	repositoryRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)
	tagRegex        = regexp.MustCompile("^" + distref.TagRegexp.String() + "$")
)

// IsRegistryHost tells whether the leading segment of a two segment path
// denotes a registry. This is the case for domain names, domain names with
// port, and anything that parses as a URI with a scheme, which among others
// covers host:port. Single label host names like "registry" therefore end
// up as namespaces.
func IsRegistryHost(s string) bool {
	return isDomainName(s) || isDomainNameWithPort(s) || hasScheme(s)
}

//
func isDomainName(s string) bool {
	return domainRegex.MatchString(s)
}

//
func isDomainNameWithPort(s string) bool {
	return domainWithPortRegex.MatchString(s)
}

//
func hasScheme(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != ""
}

// IsValidRepositoryName checks a repository name, which is restricted to
// lowercase letters, digits, underscores, and dashes.
func IsValidRepositoryName(r string) bool {
	return repositoryRegex.MatchString(r)
}

//
func validateRepository(r string) error {
	if !IsValidRepositoryName(r) {
		return fmt.Errorf("%w: '%s'", ErrInvalidRepository, r)
	}
	return nil
}

//
func validateDigest(d string) error {
	if _, err := digests.Validate(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	return nil
}

//
func validateTag(t string) error {
	if !tagRegex.MatchString(t) {
		return fmt.Errorf("%w: invalid tag '%s'", ErrInvalidReference, t)
	}
	return nil
}

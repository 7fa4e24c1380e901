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

package tags

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/blang/semver/v4"
	log "github.com/sirupsen/logrus"
)

// pattern matches a whole tag against a regular expression. With a leading
// '!', it matches all tags the expression does not match.
type pattern struct {
	expr    *regexp.Regexp
	negated bool
}

//
func newPattern(p string) (*pattern, error) {

	p = strings.TrimSpace(p)
	ret := &pattern{negated: strings.HasPrefix(p, "!")}
	p = strings.TrimPrefix(p, "!")

	if p == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	if !strings.HasPrefix(p, "^") {
		p = "^" + p
	}
	if !strings.HasSuffix(p, "$") {
		p += "$"
	}

	var err error
	if ret.expr, err = regexp.Compile(p); err != nil {
		return nil, err
	}
	return ret, nil
}

//
func (p *pattern) matches(tag string) bool {
	return p.expr.MatchString(tag) != p.negated
}

// semverTag is a tag that parses as a semantic version.
type semverTag struct {
	tag     string
	version semver.Version
}

// parseSemverTags returns the tags that are semantic versions, highest
// version first. Tags such as v1.2 are accepted.
func parseSemverTags(tags []string) []semverTag {

	var ret []semverTag
	for _, t := range tags {
		v, err := semver.ParseTolerant(t)
		if err != nil {
			log.Tracef("skipping tag '%s', not a valid semver: %v", t, err)
			continue
		}
		ret = append(ret, semverTag{tag: t, version: v})
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].version.GT(ret[j].version)
	})
	return ret
}

/*
	Copyright 2021 Alexander Vollschwitz <xelalex@gmx.net>

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
	A tag set narrows down which tags of an image get synced. Its entries are
	either verbatim tags, or filters with one of these prefixes:

	  semver:<range>   tags that parse as semantic versions within range
	  regex:<expr>     tags matching expr, '!' in front inverts
	  keep:<expr>      of all tags selected so far, keep only matching ones

	The tags of the reference itself are always included verbatim, unless
	pruned by a keep filter.
*/

package tags

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blang/semver/v4"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
)

//
const SemverPrefix = "semver:"
const RegexpPrefix = "regex:"
const KeepPrefix = "keep:"

// Lister lists all tags of the repository a reference belongs to.
type Lister func() ([]string, error)

//
func NewTagSet(tags []string) (*TagSet, error) {
	ret := &TagSet{}
	if err := ret.add(tags); err != nil {
		return nil, err
	}
	return ret, nil
}

//
type TagSet struct {
	verbatim []string
	semver   []semver.Range
	regex    []*pattern
	keep     []*pattern
}

//
func (ts *TagSet) add(tags []string) error {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		var err error
		switch {
		case isSemver(t):
			err = ts.addSemver(t)
		case isRegex(t):
			err = ts.addRegex(t)
		case isKeep(t):
			err = ts.addKeep(t)
		case t == "":
			err = fmt.Errorf("empty tag in tag set")
		default:
			ts.addVerbatim(t)
		}
		if err != nil {
			return fmt.Errorf("invalid tag set entry '%s': %v", t, err)
		}
	}
	return nil
}

//
func (ts *TagSet) addVerbatim(v string) {
	ts.verbatim = append(ts.verbatim, v)
}

//
func (ts *TagSet) addSemver(s string) error {
	if r, e := semver.ParseRange(s[len(SemverPrefix):]); e != nil {
		return e
	} else {
		ts.semver = append(ts.semver, r)
		return nil
	}
}

//
func (ts *TagSet) addRegex(r string) error {
	p, err := newPattern(r[len(RegexpPrefix):])
	if err != nil {
		return err
	}
	ts.regex = append(ts.regex, p)
	return nil
}

//
func (ts *TagSet) addKeep(r string) error {
	p, err := newPattern(r[len(KeepPrefix):])
	if err != nil {
		return err
	}
	ts.keep = append(ts.keep, p)
	return nil
}

//
func (ts *TagSet) IsEmpty() bool {
	return ts == nil ||
		(!ts.HasVerbatim() && !ts.HasSemver() && !ts.HasRegex() &&
			!ts.HasKeep())
}

//
func (ts *TagSet) HasVerbatim() bool {
	return ts != nil && len(ts.verbatim) > 0
}

//
func (ts *TagSet) HasSemver() bool {
	return ts != nil && len(ts.semver) > 0
}

//
func (ts *TagSet) HasRegex() bool {
	return ts != nil && len(ts.regex) > 0
}

//
func (ts *TagSet) HasKeep() bool {
	return ts != nil && len(ts.keep) > 0
}

// NeedsExpansion tells whether the tags in the source repository need to be
// listed for determining the tags to sync.
func (ts *TagSet) NeedsExpansion() bool {
	return ts.HasSemver() || ts.HasRegex()
}

// Expand determines the tags to sync for ref. These are the tags of ref
// itself, the verbatim tags of the set, and, if the set contains semver or
// regex filters, all tags returned by lister that match. References with a
// digest have no tags and are returned unexpanded, i.e. with no tags.
func (ts *TagSet) Expand(ref *reference.Reference, lister Lister) (
	[]string, error) {

	if ref.HasDigest() {
		return nil, nil
	}

	set := make(map[string]string)
	addToSet(set, ref.Tags())

	if ts.NeedsExpansion() {

		tags, err := lister()
		if err != nil {
			return nil, fmt.Errorf(
				"failed listing tags during tag set expansion: %v", err)
		}

		if ts.HasSemver() {
			addToSet(set, ts.expandSemver(tags))
		}
		if ts.HasRegex() {
			addToSet(set, ts.expandRegex(tags))
		}
	}

	if ts.HasVerbatim() {
		log.Debugf("verbatim tags: %v", ts.verbatim)
		addToSet(set, ts.verbatim)
	}

	ret := make([]string, 0, len(set))
	var pruned []string

	for t := range set {
		if ts.keepTag(t) {
			ret = append(ret, t)
		} else {
			if log.IsLevelEnabled(log.DebugLevel) {
				pruned = append(pruned, t)
			}
		}
	}

	log.WithField("ref", ref.NameWithoutTag()).Debugf("pruned tags: %v", pruned)

	sort.Strings(ret)
	log.WithField("ref", ref.NameWithoutTag()).Debugf("expanded tags: %v", ret)

	return ret, nil
}

// expandSemver returns the tags that are semantic versions within any of the
// set's ranges, highest version first.
func (ts *TagSet) expandSemver(tags []string) []string {

	var ret []string
	for _, v := range parseSemverTags(tags) {
		for _, r := range ts.semver {
			if r(v.version) {
				ret = append(ret, v.tag)
				break
			}
		}
	}

	log.Debugf("tags expanded from semver: %v", ret)
	return ret
}

//
func (ts *TagSet) expandRegex(tags []string) []string {

	var ret []string
	for _, t := range tags {
		for _, p := range ts.regex {
			if p.matches(t) {
				ret = append(ret, t)
				break
			}
		}
	}

	log.Debugf("tags expanded from regex: %v", ret)
	return ret
}

// Keep returns the tags that pass all keep filters of the set, sorted.
func (ts *TagSet) Keep(tags []string) []string {
	ret := make([]string, 0, len(tags))
	for _, t := range tags {
		if ts.keepTag(t) {
			ret = append(ret, t)
		}
	}
	sort.Strings(ret)
	return ret
}

//
func (ts *TagSet) keepTag(t string) bool {
	if ts == nil {
		return true
	}
	for _, p := range ts.keep {
		if !p.matches(t) {
			return false
		}
	}
	return true
}

//
func addToSet(s map[string]string, tags []string) {
	for _, t := range tags {
		s[t] = t
	}
}

//
func isSemver(tag string) bool {
	return strings.HasPrefix(tag, SemverPrefix)
}

//
func isRegex(tag string) bool {
	return strings.HasPrefix(tag, RegexpPrefix)
}

//
func isKeep(tag string) bool {
	return strings.HasPrefix(tag, KeepPrefix)
}

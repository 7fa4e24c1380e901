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
	log "github.com/sirupsen/logrus"
)

// Set holds references keyed by canonical name. The first reference added
// under a name wins, later additions of the same name are ignored. Iteration
// follows insertion order. A Set is not safe for concurrent modification.
type Set struct {
	refs  map[string]*Reference
	order []string
}

//
func NewSet() *Set {
	return &Set{refs: make(map[string]*Reference)}
}

// Append adds ref unless a reference with the same canonical name is already
// present. Returns whether ref was added.
func (s *Set) Append(ref *Reference) bool {

	if ref == nil {
		return false
	}

	if s.refs == nil {
		s.refs = make(map[string]*Reference)
	}

	name := ref.Name()
	if _, ok := s.refs[name]; ok {
		log.WithField("ref", name).Trace("already in set")
		return false
	}

	s.refs[name] = ref
	s.order = append(s.order, name)
	return true
}

// AppendString parses text and appends the result. Nothing is added when
// parsing fails.
func (s *Set) AppendString(text string) error {
	ref, err := Parse(text)
	if err != nil {
		return err
	}
	s.Append(ref)
	return nil
}

//
func (s *Set) Extend(refs ...*Reference) {
	for _, r := range refs {
		s.Append(r)
	}
}

// ExtendStrings appends the texts in order, stopping at the first one that
// cannot be parsed. Texts before the failing one remain in the set.
func (s *Set) ExtendStrings(texts []string) error {
	for _, t := range texts {
		if err := s.AppendString(t); err != nil {
			return err
		}
	}
	return nil
}

// Contains checks whether ref is in the set, either as an entry of its own or
// as an extra tag of an entry.
func (s *Set) Contains(ref *Reference) bool {

	if ref == nil {
		return false
	}

	if _, ok := s.refs[ref.Name()]; ok {
		return true
	}

	for _, name := range s.order {
		if s.refs[name].IsExtraTag(ref) {
			return true
		}
	}

	return false
}

// ContainsName is Contains for a reference string.
func (s *Set) ContainsName(text string) (bool, error) {
	ref, err := Parse(text)
	if err != nil {
		return false, err
	}
	return s.Contains(ref), nil
}

// Get returns the entry stored under canonical name, if any.
func (s *Set) Get(name string) (*Reference, bool) {
	ref, ok := s.refs[name]
	return ref, ok
}

// Len returns the number of entries, not counting extra tags.
func (s *Set) Len() int {
	return len(s.order)
}

// References returns the entries in insertion order. Extra tags are not
// entries of their own, they stay attached to their entry.
func (s *Set) References() []*Reference {
	ret := make([]*Reference, 0, len(s.order))
	for _, name := range s.order {
		ret = append(ret, s.refs[name])
	}
	return ret
}

// Names returns the canonical names of all entries in insertion order.
func (s *Set) Names() []string {
	ret := make([]string, len(s.order))
	copy(ret, s.order)
	return ret
}

// Filter removes references with duplicate canonical names, keeping the first
// one seen and the order of first appearance. The returned references are the
// ones passed in, so they keep their extra tags.
func Filter(refs []*Reference) []*Reference {
	set := NewSet()
	set.Extend(refs...)
	return set.References()
}

// FilterStrings parses all texts and then filters them like Filter.
func FilterStrings(texts []string) ([]*Reference, error) {
	set := NewSet()
	if err := set.ExtendStrings(texts); err != nil {
		return nil, err
	}
	return set.References(), nil
}

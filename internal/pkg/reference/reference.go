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

/*
	A reference has this format:

	  [registry_host[:port]/][namespace/]repository[:<tag>|@sha256:<digest>]

	Omitted parts are filled in with defaults when the reference is rendered,
	so `demo` becomes `docker.io/library/demo:latest`.
*/

package reference

import (
	"fmt"

	distref "github.com/distribution/reference"
)

//
const (
	DefaultRegistryHost = "docker.io"
	DefaultNamespace    = "library"
	LatestTag           = "latest"
	StableTag           = "stable"
)

// Reference is an immutable, validated image reference. The zero value is not
// usable, references are created with New or Parse.
type Reference struct {
	host       string
	namespace  string
	repository string
	tag        string
	digest     string
	extra      []*Reference
}

// Option sets an optional part of a reference during construction.
type Option func(*options)

type options struct {
	host      string
	namespace string
	tag       string
	digest    string
	extraTags []string
}

//
func WithHost(h string) Option {
	return func(o *options) { o.host = h }
}

//
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

//
func WithTag(t string) Option {
	return func(o *options) { o.tag = t }
}

//
func WithDigest(d string) Option {
	return func(o *options) { o.digest = d }
}

// WithExtraTags adds sibling tags to the reference. Each call appends to the
// tags of this construction only.
func WithExtraTags(tags ...string) Option {
	return func(o *options) {
		o.extraTags = append(o.extraTags, tags...)
	}
}

// New creates a reference for repository. Tag and digest are mutually
// exclusive, and extra tags require a tag.
func New(repository string, opts ...Option) (*Reference, error) {

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.tag == "" {
		if len(o.extraTags) > 0 {
			return nil, fmt.Errorf(
				"%w: tag must be set when extra tags are set",
				ErrConstructionConflict)
		}
	} else if o.digest != "" {
		return nil, fmt.Errorf(
			"%w: tag and digest cannot be set at the same time",
			ErrConstructionConflict)
	}

	if err := validateRepository(repository); err != nil {
		return nil, err
	}
	if o.digest != "" {
		if err := validateDigest(o.digest); err != nil {
			return nil, err
		}
	}
	if o.tag != "" {
		if err := validateTag(o.tag); err != nil {
			return nil, err
		}
	}

	ret := &Reference{
		host:       o.host,
		namespace:  o.namespace,
		repository: repository,
		tag:        o.tag,
		digest:     o.digest,
	}

	if len(o.extraTags) > 0 {
		ret.extra = make([]*Reference, 0, len(o.extraTags))
		for _, t := range o.extraTags {
			if err := validateTag(t); err != nil {
				return nil, err
			}
			ret.extra = append(ret.extra, &Reference{
				host:       o.host,
				namespace:  o.namespace,
				repository: repository,
				tag:        t,
			})
		}
	}

	return ret, nil
}

// Host returns the registry host, docker.io if not set.
func (r *Reference) Host() string {
	if r.host == "" {
		return DefaultRegistryHost
	}
	return r.host
}

// Namespace returns the namespace, library if not set.
func (r *Reference) Namespace() string {
	if r.namespace == "" {
		return DefaultNamespace
	}
	return r.namespace
}

//
func (r *Reference) Repository() string {
	return r.repository
}

// Tag returns the tag, latest if not set. For references with a digest, this
// is also latest, use HasDigest to tell them apart.
func (r *Reference) Tag() string {
	if r.tag == "" {
		return LatestTag
	}
	return r.tag
}

//
func (r *Reference) HasTag() bool {
	return r.tag != ""
}

//
func (r *Reference) Digest() string {
	return r.digest
}

//
func (r *Reference) HasDigest() bool {
	return r.digest != ""
}

// ExtraTags returns the sibling references carrying the extra tags, in the
// order in which they were given.
func (r *Reference) ExtraTags() []*Reference {
	ret := make([]*Reference, len(r.extra))
	copy(ret, r.extra)
	return ret
}

// Tags returns the tag followed by all extra tags. References with a digest
// have no tags.
func (r *Reference) Tags() []string {
	if r.HasDigest() {
		return nil
	}
	ret := make([]string, 0, len(r.extra)+1)
	ret = append(ret, r.Tag())
	for _, e := range r.extra {
		ret = append(ret, e.Tag())
	}
	return ret
}

// IsExtraTag returns true if other names one of the extra tags.
func (r *Reference) IsExtraTag(other *Reference) bool {
	if other == nil {
		return false
	}
	name := other.Name()
	for _, e := range r.extra {
		if e.Name() == name {
			return true
		}
	}
	return false
}

// Image returns repository and tag, or repository and digest.
func (r *Reference) Image() string {
	if r.HasDigest() {
		return fmt.Sprintf("%s@%s", r.repository, r.digest)
	}
	return fmt.Sprintf("%s:%s", r.repository, r.Tag())
}

// Path returns namespace and repository.
func (r *Reference) Path() string {
	return fmt.Sprintf("%s/%s", r.Namespace(), r.repository)
}

//
func (r *Reference) NameWithoutTag() string {
	return fmt.Sprintf("%s/%s", r.Host(), r.Path())
}

//
func (r *Reference) NameLatestTag() string {
	return fmt.Sprintf("%s:%s", r.NameWithoutTag(), LatestTag)
}

//
func (r *Reference) NameStableTag() string {
	return fmt.Sprintf("%s:%s", r.NameWithoutTag(), StableTag)
}

// Name returns the canonical name, host/namespace/repository:tag or
// host/namespace/repository@digest. Extra tags are not part of it.
func (r *Reference) Name() string {
	return fmt.Sprintf("%s/%s/%s", r.Host(), r.Namespace(), r.Image())
}

//
func (r *Reference) String() string {
	return r.Name()
}

// GoString includes all parts, for debug logging.
func (r *Reference) GoString() string {
	return fmt.Sprintf(
		"Reference(%s) registry: %s, namespace: %s, repository: %s, "+
			"tag: %s, digest: %s, extra tags: %v",
		r.Name(), r.Host(), r.Namespace(), r.repository, r.Tag(), r.digest,
		r.Tags())
}

// Equal compares the canonical names of two references.
func (r *Reference) Equal(other *Reference) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Name() == other.Name()
}

// Matches parses s and compares it to the reference. A string that cannot be
// parsed never matches.
func (r *Reference) Matches(s string) bool {
	other, err := Parse(s)
	if err != nil {
		return false
	}
	return r.Equal(other)
}

// WithTag returns a copy of the reference carrying tag t instead of its
// current tag or digest. Extra tags are dropped.
func (r *Reference) WithTag(t string) (*Reference, error) {
	return New(r.repository, WithHost(r.host), WithNamespace(r.namespace),
		WithTag(t))
}

// Rebase returns a copy of the reference moved to registry host and, if not
// empty, to namespace. Tag or digest and extra tags are kept.
func (r *Reference) Rebase(host, namespace string) (*Reference, error) {
	if namespace == "" {
		namespace = r.namespace
	}
	opts := []Option{WithHost(host), WithNamespace(namespace)}
	if r.HasDigest() {
		opts = append(opts, WithDigest(r.digest))
	} else if r.tag != "" {
		opts = append(opts, WithTag(r.tag))
		for _, e := range r.extra {
			opts = append(opts, WithExtraTags(e.tag))
		}
	}
	return New(r.repository, opts...)
}

// Named returns the reference in the normalized form used by the Docker
// tooling. This fails for references that are valid here, but not for
// Docker, e.g. repository names starting with a dash.
func (r *Reference) Named() (distref.Named, error) {
	named, err := distref.ParseNormalizedNamed(r.Name())
	if err != nil {
		return nil, fmt.Errorf("'%s' is not a valid Docker reference: %v",
			r.Name(), err)
	}
	return named, nil
}

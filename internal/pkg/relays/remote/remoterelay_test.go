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

package remote

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
	"github.com/xelalexv/imagekit/internal/pkg/test"
)

// startRegistry runs an in-memory registry and returns its host:port.
func startRegistry(th *test.TestHelper) string {
	s := httptest.NewServer(registry.New())
	th.Cleanup(s.Close)
	u, err := url.Parse(s.URL)
	th.AssertNoError(err)
	return u.Host
}

//
func parseName(th *test.TestHelper, ref string) name.Reference {
	r, err := name.ParseReference(ref)
	th.AssertNoError(err)
	return r
}

//
func seedImage(th *test.TestHelper, ref string) string {
	img, err := random.Image(1024, 2)
	th.AssertNoError(err)
	th.AssertNoError(remote.Write(parseName(th, ref), img))
	d, err := img.Digest()
	th.AssertNoError(err)
	return d.String()
}

//
func seedIndex(th *test.TestHelper, ref string) string {
	idx, err := random.Index(512, 1, 2)
	th.AssertNoError(err)
	th.AssertNoError(remote.WriteIndex(parseName(th, ref), idx))
	d, err := idx.Digest()
	th.AssertNoError(err)
	return d.String()
}

//
func digestOf(th *test.TestHelper, ref string) string {
	desc, err := remote.Head(parseName(th, ref))
	th.AssertNoError(err)
	return desc.Digest.String()
}

//
func TestTransfer(t *testing.T) {

	th := test.NewTestHelper(t)
	host := startRegistry(th)
	ctx := context.Background()

	want := seedImage(th, host+"/src/demo:v1")

	r := NewRemoteRelay()
	th.AssertNoError(r.Prepare())
	defer r.Dispose()
	r.Configure(&relays.Settings{})

	src := reference.MustParse(host + "/src/demo:v1")
	dst, err := src.Rebase(host, "mirror")
	th.AssertNoError(err)

	th.AssertNoError(relays.Transfer(ctx, r, src, dst))
	th.AssertEqual(want, digestOf(th, host+"/mirror/demo:v1"))

	tags, err := ListTags(ctx, dst, relays.Endpoint{})
	th.AssertNoError(err)
	th.AssertEqualSlices([]string{"v1"}, tags)
}

//
func TestTransferIndex(t *testing.T) {

	th := test.NewTestHelper(t)
	host := startRegistry(th)
	ctx := context.Background()

	want := seedIndex(th, host+"/src/multi:v2")

	r := NewRemoteRelay()
	r.Configure(nil)

	src := reference.MustParse(host + "/src/multi:v2")
	dst := reference.MustParse(host + "/mirror/multi:v2")

	th.AssertNoError(relays.Transfer(ctx, r, src, dst))
	th.AssertEqual(want, digestOf(th, host+"/mirror/multi:v2"))
}

//
func TestPullAllTags(t *testing.T) {

	th := test.NewTestHelper(t)
	host := startRegistry(th)
	ctx := context.Background()

	seedImage(th, host+"/src/demo:a")
	seedImage(th, host+"/src/demo:b")

	r := NewRemoteRelay()
	r.Configure(&relays.Settings{})

	src := reference.MustParse(host + "/src/demo")
	th.AssertNoError(r.Pull(ctx, src, true))

	tags, err := r.ListTags(ctx, src)
	th.AssertNoError(err)
	th.AssertEquivalentSlices([]string{"a", "b"}, tags)

	for _, tag := range tags {
		s, err := src.WithTag(tag)
		th.AssertNoError(err)
		d, err := s.Rebase(host, "mirror")
		th.AssertNoError(err)
		ok, err := r.Retag(ctx, s, d)
		th.AssertNoError(err)
		th.AssertTrue(ok)
		th.AssertNoError(r.Push(ctx, d))
	}

	tags, err = ListTags(ctx, reference.MustParse(host+"/mirror/demo"),
		relays.Endpoint{})
	th.AssertNoError(err)
	th.AssertEquivalentSlices([]string{"a", "b"}, tags)
}

//
func TestRetagNotPulled(t *testing.T) {

	th := test.NewTestHelper(t)
	r := NewRemoteRelay()

	ok, err := r.Retag(context.Background(),
		reference.MustParse("demo:v1"), reference.MustParse("other:v1"))
	th.AssertNoError(err)
	th.AssertFalse(ok)

	th.AssertErrorIs(r.Push(context.Background(),
		reference.MustParse("other:v1")), relays.ErrNotAvailable)
}

//
func TestPullMissing(t *testing.T) {
	th := test.NewTestHelper(t)
	host := startRegistry(th)
	r := NewRemoteRelay()
	th.AssertError(r.Pull(context.Background(),
		reference.MustParse(host+"/src/missing:v1"), false), "")
}

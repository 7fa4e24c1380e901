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
	"testing"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/test"
)

//
func TestLocationTargetRegistry(t *testing.T) {

	th := test.NewTestHelper(t)

	for _, h := range []string{
		"127.0.0.1:5000",
		"10.0.0.5",
		"[::1]:5000",
		"localhost:5000",
		"registry",
		"registry:5000",
		"registry.example.com",
		"registry.example.com:443",
	} {
		l := &Location{Registry: h, Namespace: "mirror"}
		th.AssertNoError(l.validate(true))

		dst, err := l.mapRef(reference.MustParse("demo:v1"))
		th.AssertNoError(err)
		th.AssertEqual(h+"/mirror/demo:v1", dst.Name())
	}

	for _, h := range []string{"registry.example.com/mirror", "registry:abc"} {
		l := &Location{Registry: h}
		th.AssertError(l.validate(true), "is not a valid registry host")
	}
}

//
func TestLocationSource(t *testing.T) {

	th := test.NewTestHelper(t)

	l := &Location{Registry: "ignored.example.com"}
	th.AssertNoError(l.validate(false))
	th.AssertTrue(l.creds.IsEmpty())

	var nilLoc *Location
	th.AssertError(nilLoc.validate(false), "location is nil")
}

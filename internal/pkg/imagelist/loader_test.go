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

package imagelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/test"
)

//
func TestLoad(t *testing.T) {

	th := test.NewTestHelper(t)
	base := filepath.Join(th.FixtureRoot(), "images")
	file := filepath.Join(base, "docker.io")

	l, err := Load(file)
	th.AssertNoError(err)
	th.AssertEqual(base, l.Dirname())
	th.AssertEqual("docker.io", l.Basename())
	th.AssertEqual(file, l.Filename())

	th.AssertEqualSlices([]string{
		"docker.io/library/alpine:3.19",
		"docker.io/library/alpine:3.18",
		"docker.io/library/nginx:latest",
		"quay.io/prometheus/prometheus:v2.53.0",
		"registry.example.com/unittest/demo:v1.0.0",
		"docker.io/library/demo:latest",
		"docker.io/library/busybox:1.36",
		"docker.io/library/alpine:latest",
	}, l.Names())
	th.AssertLen(8, l.Len())

	for _, name := range []string{"busybox:stable", "alpine:latest",
		"nginx", "demo"} {
		in, err := l.ContainsName(name)
		th.AssertNoError(err)
		th.AssertTrue(in)
	}

	in, err := l.ContainsName("alpine:3.17")
	th.AssertNoError(err)
	th.AssertFalse(in)

	busybox, ok := l.Get("docker.io/library/busybox:1.36")
	th.AssertTrue(ok)
	th.AssertEqualSlices([]string{"1.36", "stable"}, busybox.Tags())

	th.AssertEqualSlices([]string{
		file,
		filepath.Join(base, "library", "alpine"),
		filepath.Join(base, "library", "nginx"),
		filepath.Join(base, "quay", "prometheus"),
		filepath.Join(base, "unittest", "extra"),
	}, l.Files())
}

//
func TestLoadRelativePath(t *testing.T) {

	th := test.NewTestHelper(t)
	base := filepath.Join(th.FixtureRoot(), "images")

	wd, err := os.Getwd()
	th.AssertNoError(err)
	rel, err := filepath.Rel(wd, filepath.Join(base, "quay", "prometheus"))
	th.AssertNoError(err)

	l, err := Load(rel)
	th.AssertNoError(err)
	th.AssertEqual(filepath.Join(base, "quay"), l.Dirname())
	th.AssertLen(1, l.Len())
}

//
func TestLoadCommentsOnly(t *testing.T) {
	th := test.NewTestHelper(t)
	l, err := Load(th.GetFixture("images/comments"))
	th.AssertNoError(err)
	th.AssertLen(0, l.Len())
	th.AssertLen(0, len(l.References()))
}

//
func TestLoadDuplicateImports(t *testing.T) {
	th := test.NewTestHelper(t)
	l, err := Load(th.GetFixture("images/diamond"))
	th.AssertNoError(err)
	th.AssertEqualSlices([]string{
		"registry.example.com/unittest/demo:v1.0.0",
		"docker.io/library/demo:latest",
		"quay.io/prometheus/prometheus:v2.53.0",
	}, l.Names())
	th.AssertLen(4, len(l.Files()))
}

//
func TestLoadEscapedComment(t *testing.T) {
	th := test.NewTestHelper(t)
	l, err := Load(th.GetFixture("images/escaped"))
	th.AssertNoError(err)
	th.AssertEqualSlices(
		[]string{"docker.io/library/demo:escaped"}, l.Names())
}

//
func TestLoadErrors(t *testing.T) {

	th := test.NewTestHelper(t)

	for _, tc := range []struct {
		file string
		err  error
		msg  string
	}{
		{"images/library", ErrFileNotFound, ""},
		{"images/import", ErrFileNotFound, ""},
		{"images", ErrFileNotFound, ""},
		{"images/docker", ErrInvalidImport, "does-not-exist"},
		{"images/import-no-path", ErrInvalidImport, "no path given"},
		{"images/cycle/a", ErrCyclicImport, "already being loaded"},
		{"images/cycle/self", ErrCyclicImport, "self"},
		{"images/subdir", ErrFileNotFound, "deeper"},
		{"images/broken", reference.ErrInvalidRepository,
			"broken-nested:2: invalid repository name: 'Demo'"},
	} {
		l, err := Load(th.GetFixture(tc.file))
		th.AssertErrorIs(err, tc.err)
		th.AssertError(err, tc.msg)
		th.AssertNil(l)
	}
}

//
func TestLoadBadLine(t *testing.T) {

	th := test.NewTestHelper(t)

	file := th.WriteFile("", "list", "demo\n\ndemo@sha256:1234 # short\n")
	_, err := Load(file)
	th.AssertErrorIs(err, reference.ErrInvalidDigest)
	th.AssertError(err, file+":3:")

	file = th.WriteFile("", "list", "a/b/c/d\n")
	_, err = Load(file)
	th.AssertErrorIs(err, reference.ErrInvalidReference)

	// lines starting with 'import' that aren't imports are references
	file = th.WriteFile("", "list", "importer/demo:v1\n")
	l, err := Load(file)
	th.AssertNoError(err)
	th.AssertEqualSlices([]string{"docker.io/importer/demo:v1"}, l.Names())
}

//
func TestLoadAbsoluteImport(t *testing.T) {

	th := test.NewTestHelper(t)

	target := th.GetFixture("images/quay/prometheus")
	abs, err := filepath.Abs(target)
	th.AssertNoError(err)

	file := th.WriteFile("", "list", "import "+abs+"\ndemo\n")
	l, err := Load(file)
	th.AssertNoError(err)
	th.AssertLen(2, l.Len())
}

//
func TestStripComment(t *testing.T) {

	th := test.NewTestHelper(t)

	for _, tc := range [][2]string{
		{"demo", "demo"},
		{"# comment", ""},
		{"demo # comment", "demo"},
		{"demo#comment", "demo"},
		{"import a\\#b # comment", "import a#b"},
		{"a\\b", "a\\b"},
		{"demo \\# # x", "demo #"},
	} {
		th.AssertEqual(tc[1], stripComment(tc[0]))
	}
}

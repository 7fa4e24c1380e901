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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/xelalexv/imagekit/internal/pkg/imagelist"
	"github.com/xelalexv/imagekit/internal/pkg/test"
)

//
func TestValidSyncConfigs(t *testing.T) {

	th := test.NewTestHelper(t)

	c, e := LoadConfig(th.GetFixture("config/docker.yaml"))
	th.AssertNoError(e)
	th.AssertNotNil(c)
	th.AssertEqual("docker", c.Relay)
	th.AssertEqual("unix:///var/run/docker.sock", c.Docker.DockerHost)
	th.AssertFalse(c.Watch)
	th.AssertLen(1, len(c.Tasks))

	task := c.Tasks[0]
	th.AssertLen(8, len(task.References()))
	th.AssertLen(6, len(c.Files()))
	th.AssertEqual("user", task.Target.creds.Username())
	th.AssertEqual("secret", task.Target.creds.Password())
	th.AssertTrue(task.Source.creds.IsEmpty())

	s := task.settings()
	th.AssertEqual("linux/amd64", s.Platform)
	th.AssertEqual("user", s.Target.Creds.Username())
	th.AssertTrue(task.tagSet.HasSemver())
	th.AssertTrue(task.tagSet.HasKeep())

	dst, err := task.Target.mapRef(task.References()[0])
	th.AssertNoError(err)
	th.AssertEqual("registry.example.com/mirror/alpine:3.19", dst.Name())
	th.AssertEqualSlices([]string{"3.19", "latest"}, dst.Tags())

	c, e = LoadConfig(th.GetFixture("config/skopeo.yaml"))
	th.AssertNoError(e)
	th.AssertEqual("skopeo", c.Relay)
	th.AssertEqual("/etc/skopeo/certs.d", c.Skopeo.CertsDir)
	th.AssertTrue(c.Watch)
	th.AssertEqual(60, c.Tasks[0].Interval)
	th.AssertTrue(c.Tasks[0].Target.SkipTLSVerify)

	c, e = LoadConfig(th.GetFixture("config/remote.yaml"))
	th.AssertNoError(e)
	th.AssertEqual("remote", c.Relay)
	th.AssertLen(2, len(c.Tasks))
	th.AssertTrue(c.Tasks[0].AllTags)

	// namespace is kept when target has none
	dst, err = c.Tasks[0].Target.mapRef(c.Tasks[0].References()[0])
	th.AssertNoError(err)
	th.AssertEqual("localhost:5000/library/alpine:3.19", dst.Name())
}

//
func TestInvalidSyncConfigs(t *testing.T) {

	th := test.NewTestHelper(t)

	// relay
	tryConfig(th, "config/invalid-relay.yaml", "invalid relay type: 'podman'")
	tryConfig(th, "config/docker-platform-all.yaml",
		"relay 'docker' does not support 'platform: all' (task 'test')")
	tryConfig(th, "config/unknown-field.yaml", "field mappings not found")

	// task
	tryConfig(th, "config/task-no-name.yaml", "a task requires a name")
	tryConfig(th, "config/task-low-interval.yaml",
		"minimum task interval is 30 seconds")
	tryConfig(th, "config/task-bad-interval.yaml",
		"task interval needs to be 0 or a positive integer")
	tryConfig(th, "config/task-no-source.yaml",
		"source registry in task 'test' invalid: location is nil")
	tryConfig(th, "config/task-no-target.yaml",
		"target registry in task 'test' invalid: location is nil")
	tryConfig(th, "config/task-duplicate.yaml", "duplicate task name 'test'")
	tryConfig(th, "config/task-bad-platform.yaml",
		"invalid platform '/amd64' in task 'test'")
	tryConfig(th, "config/task-bad-tags.yaml",
		"task 'test': invalid tag set entry 'regex:['")
	tryConfig(th, "config/task-all-tags-filter.yaml",
		"'all-tags' can only be combined with 'keep:' filters")

	// target location
	tryConfig(th, "config/target-no-registry.yaml",
		"target registry in task 'test' invalid: registry not set")
	tryConfig(th, "config/target-bad-namespace.yaml",
		"invalid namespace 'Mirror'")
	tryConfig(th, "config/target-bad-auth.yaml", "invalid auth")

	// image lists
	tryConfig(th, "config/task-no-images.yaml", "task 'test' has no image list")

	_, err := tryConfig(th, "config/task-missing-images.yaml",
		"cannot load image list of task 'test'")
	th.AssertTrue(errors.Is(err, imagelist.ErrFileNotFound))

	_, err = tryConfig(th, "config/task-cyclic-images.yaml",
		"cannot load image list of task 'test'")
	th.AssertTrue(errors.Is(err, imagelist.ErrCyclicImport))

	// config file itself
	tryConfig(th, "config/does-not-exist.yaml", "error loading config file")
}

//
func TestConfigWatch(t *testing.T) {

	th := test.NewTestHelper(t)
	dir := t.TempDir()

	images := th.WriteFile(dir, "lists/images", "demo:v1\nimport more\n")
	more := th.WriteFile(dir, "lists/more", "other\n")
	unrelated := th.WriteFile(dir, "lists/unrelated", "nothing\n")
	config := th.WriteFile(dir, "config.yaml", `relay: remote
watch: true
tasks:
  - name: test
    images: lists/images
    source: {}
    target:
      registry: registry.example.com
`)

	c, err := LoadConfig(config)
	th.AssertNoError(err)
	th.AssertEqualSlices([]string{config, images, more}, c.Files())

	w, err := c.watch()
	th.AssertNoError(err)
	defer w.Close()

	th.AssertFalse(c.isChanged(fsnotify.Event{Name: unrelated,
		Op: fsnotify.Write}))
	th.AssertFalse(c.isChanged(fsnotify.Event{Name: more, Op: fsnotify.Chmod}))
	th.AssertFalse(c.isChanged(fsnotify.Event{Name: filepath.Dir(dir),
		Op: fsnotify.Remove}))
	th.AssertFalse(c.isChanged(fsnotify.Event{Name: filepath.Join(dir, "lists"),
		Op: fsnotify.Chmod}))

	th.AssertTrue(c.isChanged(fsnotify.Event{Name: config, Op: fsnotify.Write}))
	th.AssertTrue(c.isChanged(fsnotify.Event{Name: more, Op: fsnotify.Remove}))
	th.AssertTrue(c.isChanged(fsnotify.Event{Name: dir, Op: fsnotify.Remove}))
	th.AssertTrue(c.isChanged(fsnotify.Event{Name: filepath.Join(dir, "lists"),
		Op: fsnotify.Remove}))

	th.AssertNoError(os.WriteFile(more, []byte("other:v2\n"), 0644))
	th.AssertTrue(c.isChanged(fsnotify.Event{Name: more, Op: fsnotify.Chmod}))
}

//
func TestConfigNoWatch(t *testing.T) {

	th := test.NewTestHelper(t)

	c, err := LoadConfig(th.GetFixture("config/docker.yaml"))
	th.AssertNoError(err)

	w, err := c.watch()
	th.AssertNoError(err)
	defer w.Close()

	th.AssertFalse(c.isChanged(fsnotify.Event{Name: c.source,
		Op: fsnotify.Write}))
}

//
func tryConfig(th *test.TestHelper, file, err string) (*SyncConfig, error) {

	test.StackTraceDepth = 2
	defer func() { test.StackTraceDepth = 1 }()

	c, e := LoadConfig(th.GetFixture(file))
	if err != "" {
		th.AssertError(e, err)
		th.AssertNil(c)
	} else {
		th.AssertNoError(e)
		th.AssertNotNil(c)
	}

	return c, e
}

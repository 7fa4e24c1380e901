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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/relays/docker"
	"github.com/xelalexv/imagekit/internal/pkg/relays/remote"
	"github.com/xelalexv/imagekit/internal/pkg/relays/skopeo"
	"github.com/xelalexv/imagekit/internal/pkg/util"
)

//
const minimumTaskInterval = 30

//
type SyncConfig struct {
	Relay  string              `yaml:"relay"`
	Docker *docker.RelayConfig `yaml:"docker"`
	Skopeo *skopeo.RelayConfig `yaml:"skopeo"`
	Tasks  []*Task             `yaml:"tasks"`
	Watch  bool                `yaml:"watch"`
	//
	source string
	files  map[string][]byte // watched files and their SHA1 digests
	dirs   map[string]bool   // parent dirs of watched files
}

//
func (c *SyncConfig) validate() error {

	if c.Relay == "" {
		c.Relay = docker.RelayID
	}

	switch c.Relay {
	case docker.RelayID, skopeo.RelayID, remote.RelayID:
	default:
		return fmt.Errorf(
			"invalid relay type: '%s', must be one of '%s', '%s', or '%s'",
			c.Relay, docker.RelayID, skopeo.RelayID, remote.RelayID)
	}

	if len(c.Tasks) == 0 {
		log.Warn("config contains no tasks")
	}

	dir := filepath.Dir(c.source)
	names := make(map[string]bool)

	for _, t := range c.Tasks {
		if t == nil {
			return fmt.Errorf("empty task in config")
		}
		if err := t.validate(dir); err != nil {
			return err
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate task name '%s'", t.Name)
		}
		names[t.Name] = true
		if c.Relay == docker.RelayID && t.Platform == "all" {
			return fmt.Errorf(
				"relay '%s' does not support 'platform: all' (task '%s')",
				docker.RelayID, t.Name)
		}
	}

	return nil
}

// Files returns the config file and all image list files it references.
func (c *SyncConfig) Files() []string {
	seen := map[string]bool{c.source: true}
	ret := []string{c.source}
	for _, t := range c.Tasks {
		if t.images == nil {
			continue
		}
		for _, f := range t.images.Files() {
			if !seen[f] {
				seen[f] = true
				ret = append(ret, f)
			}
		}
	}
	return ret
}

// watch sets up watching the config file and all image lists. If watching is
// off, the returned watcher has nothing to watch.
func (c *SyncConfig) watch() (*fsnotify.Watcher, error) {

	watch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if !c.Watch {
		log.Info("not watching config file")
		return watch, nil
	}

	c.files = make(map[string][]byte)
	c.dirs = make(map[string]bool)

	for _, f := range c.Files() {

		if err = watch.Add(f); err != nil {
			watch.Close()
			return nil, err
		}

		// In addition to the file itself, we also watch the parent dir. The
		// file may be changed by replacing it, rather than writing to it,
		// which cannot be handled by the watch on the file.
		dir := filepath.Dir(f)
		if !c.dirs[dir] {
			if err = watch.Add(dir); err != nil {
				watch.Close()
				return nil, err
			}
			c.dirs[dir] = true
		}

		// starting SHA1 digest for later comparisons
		if c.files[f], err = util.ComputeSHA1(f); err != nil {
			watch.Close()
			return nil, err
		}

		log.WithField("file", f).Debug("watching")
	}

	log.WithField("file", c.source).Info(
		"watching config file and image lists, restarting on change")
	return watch, nil
}

//
func (c *SyncConfig) isChanged(evt fsnotify.Event) bool {

	log.WithFields(
		log.Fields{"op": evt.Op, "name": evt.Name}).Trace("file watch event")

	initial, isFile := c.files[evt.Name]

	// event neither concerns a watched file, nor its parent
	if !isFile && !c.dirs[evt.Name] {
		return false
	}

	log.WithFields(log.Fields{"op": evt.Op, "name": evt.Name}).Debug(
		"watched file event")

	// Removal of the parent dir is an indication for change: on Kubernetes,
	// config maps mounted into pods are updated by creating a new parent dir
	// and mounting new config map content into it. If the file itself was
	// removed, we also see that as an indication for content change.
	if evt.Has(fsnotify.Remove) {
		if isFile {
			log.Debug("file removed, assuming change")
		} else {
			log.Debug("parent directory removed, assuming change")
		}

	} else if evt.Has(fsnotify.Chmod) {
		// In case of a CHMOD event for the file itself, we calculate the
		// SHA1 digest and compare with initial one to check for change.
		if isFile {
			d, err := util.ComputeSHA1(evt.Name)
			if err != nil || util.CompareSHA1(initial, d) {
				log.Debug("no content change")
				return false
			}
			log.Debug("changed content")
		} else {
			return false // CHMOD on parent not relevant
		}

	} else {
		log.Debug("file changed") // all other events mean change
	}

	return true
}

// LoadConfig reads and validates a config file, including all image lists
// the tasks refer to.
func LoadConfig(file string) (*SyncConfig, error) {

	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("error loading config file '%s': %v", file, err)
	}

	// resolve any links
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, fmt.Errorf("error loading config file '%s': %v", file, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("error loading config file '%s': %v", file, err)
	}

	config := &SyncConfig{source: abs}

	if err = yaml.UnmarshalStrict(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %v", file, err)
	}

	if err = config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

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
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/imagelist"
	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/registry"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
	"github.com/xelalexv/imagekit/internal/pkg/tags"
)

//
type Task struct {
	Name     string    `yaml:"name"`
	Interval int       `yaml:"interval"`
	Images   string    `yaml:"images"`
	Source   *Location `yaml:"source"`
	Target   *Location `yaml:"target"`
	Tags     []string  `yaml:"tags"`
	AllTags  bool      `yaml:"all-tags"`
	Platform string    `yaml:"platform"`
	Verbose  bool      `yaml:"verbose"`
	//
	images   *imagelist.Loader
	tagSet   *tags.TagSet
	ticker   *time.Ticker
	lastTick time.Time
	failed   bool
	//
	exit chan bool
	done chan bool
}

// validate checks the task and loads its image list. Relative image list
// paths are resolved against dir.
func (t *Task) validate(dir string) error {

	if len(t.Name) == 0 {
		return errors.New("a task requires a name")
	}

	if 0 < t.Interval && t.Interval < minimumTaskInterval {
		return fmt.Errorf(
			"minimum task interval is %d seconds", minimumTaskInterval)
	}

	if t.Interval < 0 {
		return errors.New("task interval needs to be 0 or a positive integer")
	}

	if err := t.Source.validate(false); err != nil {
		return fmt.Errorf(
			"source registry in task '%s' invalid: %v", t.Name, err)
	}

	if err := t.Target.validate(true); err != nil {
		return fmt.Errorf(
			"target registry in task '%s' invalid: %v", t.Name, err)
	}

	if t.Platform != "" && t.Platform != "all" &&
		relays.ParsePlatform(t.Platform) == nil {
		return fmt.Errorf("invalid platform '%s' in task '%s'",
			t.Platform, t.Name)
	}

	var err error
	if t.tagSet, err = tags.NewTagSet(t.Tags); err != nil {
		return fmt.Errorf("task '%s': %v", t.Name, err)
	}
	if t.AllTags && (t.tagSet.HasVerbatim() || t.tagSet.NeedsExpansion()) {
		return fmt.Errorf(
			"task '%s': 'all-tags' can only be combined with 'keep:' filters",
			t.Name)
	}

	if t.Images == "" {
		return fmt.Errorf("task '%s' has no image list", t.Name)
	}

	file := t.Images
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	if t.images, err = imagelist.Load(file); err != nil {
		return fmt.Errorf("cannot load image list of task '%s': %w", t.Name, err)
	}

	log.WithFields(log.Fields{
		"task":   t.Name,
		"images": t.images.Len(),
		"files":  len(t.images.Files()),
	}).Debug("image list loaded")

	return nil
}

//
func (t *Task) settings() *relays.Settings {
	return &relays.Settings{
		Source:   t.Source.endpoint(),
		Target:   t.Target.endpoint(),
		Platform: t.Platform,
		Verbose:  t.Verbose,
	}
}

// References returns the images to sync, in image list order.
func (t *Task) References() []*reference.Reference {
	if t.images == nil {
		return nil
	}
	return t.images.References()
}

//
func (t *Task) startTicking(c chan *Task) {

	logger := log.WithField("task", t.Name)
	logger.Debug("task starts ticking")

	i := time.Duration(t.Interval)
	if i == 0 {
		i = 3
	}

	t.ticker = time.NewTicker(time.Second * i)
	t.lastTick = time.Now().Add(time.Second * i * (-2))

	t.exit = make(chan bool, 1)
	t.done = make(chan bool, 1)

	go func() {

		logger.Debug("sending initial fire")
		select {
		case c <- t:
		case <-t.exit:
			close(t.done)
			return
		}

		for {
			select {
			case <-t.ticker.C:
				logger.Debug("task firing")
				select {
				case c <- t:
				case <-t.exit:
					logger.Debug("task exiting")
					close(t.done)
					return
				}
			case <-t.exit:
				logger.Debug("task exiting")
				close(t.done)
				return
			}
		}
	}()
}

//
func (t *Task) tooSoon() bool {
	i := time.Duration(t.Interval)
	if i == 0 {
		return false
	}
	return time.Now().Before(t.lastTick.Add(time.Second * i / 2))
}

//
func (t *Task) stopTicking() {
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.exit)
		<-t.done
		t.ticker = nil
	}
	log.WithField("task", t.Name).Debug("task exited")
}

//
func (t *Task) fail(f bool) {
	t.failed = t.failed || f
}

//
func (t *Task) ensureTargetExists(ref *reference.Reference) error {
	if !t.Target.IsECR() {
		return nil
	}
	return registry.CreateECRTarget(ref)
}

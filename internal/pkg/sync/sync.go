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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	klog "github.com/xelalexv/imagekit/internal/pkg/log"
	"github.com/xelalexv/imagekit/internal/pkg/reference"
	"github.com/xelalexv/imagekit/internal/pkg/relays"
	"github.com/xelalexv/imagekit/internal/pkg/relays/docker"
	"github.com/xelalexv/imagekit/internal/pkg/relays/remote"
	"github.com/xelalexv/imagekit/internal/pkg/relays/skopeo"
)

var (
	// ErrConfigChanged is returned by SyncFromConfig when the config file or
	// one of the image lists changed. Callers reload the config and start
	// over.
	ErrConfigChanged = errors.New("config changed")
	// ErrTasksFailed signals that at least one one-off task failed.
	ErrTasksFailed = errors.New("one or more one-off tasks failed")
)

//
type Sync struct {
	relay  relays.Relay
	ctx    context.Context
	cancel context.CancelFunc
}

//
func New(conf *SyncConfig) (*Sync, error) {

	sync := &Sync{}
	sync.ctx, sync.cancel = context.WithCancel(context.Background())

	var out io.Writer = sync
	if klog.ToTerminal {
		out = nil
	}

	var relay relays.Relay
	var err error

	switch conf.Relay {

	case docker.RelayID:
		relay, err = docker.NewDockerRelay(conf.Docker, out)

	case skopeo.RelayID:
		relay = skopeo.NewSkopeoRelay(conf.Skopeo, out)

	case remote.RelayID:
		relay = remote.NewRemoteRelay()

	default:
		err = fmt.Errorf("relay type '%s' not supported", conf.Relay)
	}

	if err != nil {
		sync.cancel()
		return nil, fmt.Errorf("cannot create sync relay: %v", err)
	}

	sync.relay = relay
	return sync, nil
}

//
func (s *Sync) Dispose() {
	s.cancel()
	s.relay.Dispose()
}

// Shutdown stops a running SyncFromConfig, aborting any ongoing transfer.
func (s *Sync) Shutdown() {
	s.cancel()
}

// SyncFromConfig runs all one-off tasks, and then keeps running periodic
// tasks until shut down. When watching is enabled, it returns
// ErrConfigChanged as soon as the config or an image list changes.
func (s *Sync) SyncFromConfig(conf *SyncConfig) error {

	if err := s.relay.Prepare(); err != nil {
		return err
	}

	watch, err := conf.watch()
	if err != nil {
		return fmt.Errorf("cannot watch config: %v", err)
	}
	defer watch.Close()

	// one-off tasks
	failed := false
	for _, t := range conf.Tasks {
		if t.Interval == 0 {
			s.SyncTask(t)
			failed = failed || t.failed
		}
	}

	// periodic tasks
	c := make(chan *Task)
	ticking := false

	for _, t := range conf.Tasks {
		if t.Interval > 0 {
			t.startTicking(c)
			ticking = true
		}
	}

	defer func() {
		for _, t := range conf.Tasks {
			t.stopTicking()
		}
	}()

	for ticking || conf.Watch {

		if ticking {
			log.Info("waiting for next sync task...")
		}

		select {

		case t := <-c:
			s.SyncTask(t)

		case evt, ok := <-watch.Events:
			if ok && conf.isChanged(evt) {
				log.Info("config changed, restarting")
				return ErrConfigChanged
			}

		case err, ok := <-watch.Errors:
			if ok {
				log.Errorf("error watching config: %v", err)
			}

		case <-s.ctx.Done():
			log.Info("shutting down")
			if failed {
				return ErrTasksFailed
			}
			return nil
		}
	}

	if failed {
		return ErrTasksFailed
	}

	log.Info("all done")
	return nil
}

// SyncTask syncs all images of task t. Errors are logged and mark the task
// as failed, they do not stop the task.
func (s *Sync) SyncTask(t *Task) {

	logger := log.WithField("task", t.Name)

	if t.tooSoon() {
		logger.Info("task fired too soon, skipping")
		return
	}

	logger.WithFields(log.Fields{
		"images": t.Images,
		"target": t.Target.Registry,
	}).Info("syncing task")

	t.failed = false
	s.relay.Configure(t.settings())

	for _, ref := range t.References() {
		if err := s.syncImage(t, ref); err != nil {
			logger.WithField("ref", ref).Error(err)
			t.fail(true)
		}
		if s.ctx.Err() != nil {
			t.fail(true)
			break
		}
	}

	t.lastTick = time.Now()
}

// syncImage syncs all tags of src that result from expanding the task's tag
// set. A reference with a digest is synced as is.
func (s *Sync) syncImage(t *Task, src *reference.Reference) error {

	ctx := s.ctx

	if src.HasDigest() {
		dst, err := t.Target.mapRef(src)
		if err != nil {
			return err
		}
		if err := t.ensureTargetExists(dst); err != nil {
			return err
		}
		return relays.Transfer(ctx, s.relay, src, dst)
	}

	var tags []string
	var err error

	lister := func() ([]string, error) {
		return s.relay.ListTags(ctx, src)
	}

	if t.AllTags {
		if tags, err = lister(); err == nil {
			tags = t.tagSet.Keep(tags)
		}
	} else {
		tags, err = t.tagSet.Expand(src, lister)
	}
	if err != nil {
		return fmt.Errorf("error expanding tags: %v", err)
	}

	dst, err := t.Target.mapRef(src)
	if err != nil {
		return err
	}
	if err := t.ensureTargetExists(dst); err != nil {
		return fmt.Errorf("cannot create target '%s': %v",
			dst.NameWithoutTag(), err)
	}

	if t.AllTags {
		if err := s.relay.Pull(ctx, src, true); err != nil {
			return fmt.Errorf("error pulling all tags of '%s': %v",
				src.NameWithoutTag(), err)
		}
	}

	errs := 0
	for _, tag := range tags {

		srcTagged, err := src.WithTag(tag)
		if err == nil {
			var dstTagged *reference.Reference
			if dstTagged, err = dst.WithTag(tag); err == nil {
				log.WithFields(log.Fields{
					"source": srcTagged, "target": dstTagged,
				}).Info("syncing tag")
				if t.AllTags {
					err = relays.Publish(ctx, s.relay, srcTagged, dstTagged)
				} else {
					err = relays.Transfer(ctx, s.relay, srcTagged, dstTagged)
				}
			}
		}

		if err != nil {
			log.Error(err)
			errs++
		}
	}

	if errs > 0 {
		return fmt.Errorf("%d of %d tags of '%s' failed", errs, len(tags),
			src.NameWithoutTag())
	}
	return nil
}

//
func (s *Sync) Write(p []byte) (n int, err error) {
	return os.Stdout.Write(p)
}

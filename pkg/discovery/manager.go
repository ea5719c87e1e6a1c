// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/schollz/peerdiscovery"
)

// Manager publishes a responder's Announcement.
type Manager struct {
	announcement Announcement

	stopChan4 chan struct{}
	stopChan6 chan struct{}
	closeOnce sync.Once
}

// NewManager for an Announcement will be created and started.
func NewManager(announcement Announcement, interval time.Duration, ipv4, ipv6 bool) (*Manager, error) {
	var manager = &Manager{announcement: announcement}
	if ipv4 {
		manager.stopChan4 = make(chan struct{})
	}
	if ipv6 {
		manager.stopChan6 = make(chan struct{})
	}

	log.WithFields(log.Fields{
		"interval":     interval,
		"IPv4":         ipv4,
		"IPv6":         ipv6,
		"announcement": announcement,
	}).Info("Starting discovery Manager")

	msg, err := announcement.Bytes()
	if err != nil {
		return nil, err
	}

	sets := []struct {
		active           bool
		multicastAddress string
		stopChan         chan struct{}
		ipVersion        peerdiscovery.IPVersion
	}{
		{ipv4, address4, manager.stopChan4, peerdiscovery.IPv4},
		{ipv6, address6, manager.stopChan6, peerdiscovery.IPv6},
	}

	for _, set := range sets {
		if !set.active {
			continue
		}

		settings := peerdiscovery.Settings{
			Limit:            -1,
			Port:             fmt.Sprintf("%d", port),
			MulticastAddress: set.multicastAddress,
			Payload:          msg,
			Delay:            interval,
			TimeLimit:        -1,
			StopChan:         set.stopChan,
			AllowSelf:        true,
			IPVersion:        set.ipVersion,
		}

		discoverErrChan := make(chan error, 1)
		go func() {
			_, discoverErr := peerdiscovery.Discover(settings)
			discoverErrChan <- discoverErr
		}()

		select {
		case discoverErr := <-discoverErrChan:
			if discoverErr != nil {
				return nil, discoverErr
			}

		case <-time.After(time.Second):
		}
	}

	return manager, nil
}

// Close this Manager. Closing the stop channels also reaches announcers which
// already returned.
func (manager *Manager) Close() {
	manager.closeOnce.Do(func() {
		for _, c := range []chan struct{}{manager.stopChan4, manager.stopChan6} {
			if c != nil {
				close(c)
			}
		}
	})
}

// Responder is a discovered responder's address together with its Announcement.
type Responder struct {
	Announcement Announcement
	Address      string
}

// responder parses a discovered package. Packages of initiators or other
// applications are not Announcements and are skipped.
func responder(discovered peerdiscovery.Discovered) (Responder, bool) {
	announcement, err := ParseAnnouncement(discovered.Payload)
	if err != nil {
		log.WithError(err).WithField("peer", discovered.Address).Debug("Peer discovery failed to parse incoming package")
		return Responder{}, false
	}

	return Responder{
		Announcement: announcement,
		Address:      net.JoinHostPort(discovered.Address, strconv.Itoa(int(announcement.Port))),
	}, true
}

// finder keeps the first responder heard during a Find and stops the search.
type finder struct {
	once     sync.Once
	found    chan Responder
	stopChan chan struct{}
}

func newFinder() *finder {
	return &finder{
		found:    make(chan Responder, 1),
		stopChan: make(chan struct{}),
	}
}

// notify is peerdiscovery's callback for each received package.
func (f *finder) notify(discovered peerdiscovery.Discovered) {
	r, ok := responder(discovered)
	if !ok {
		return
	}

	f.once.Do(func() {
		f.found <- r
		close(f.stopChan)
	})
}

// result of the search, if any responder was heard.
func (f *finder) result() (r Responder, ok bool) {
	select {
	case r = <-f.found:
		f.found <- r
		return r, true
	default:
		return Responder{}, false
	}
}

// Find waits up to the timeout for the first responder's Announcement.
// Packages of other initiators do not end the search.
func Find(timeout time.Duration, ipv6 bool) (Responder, error) {
	f := newFinder()

	settings := peerdiscovery.Settings{
		Limit:            -1,
		Port:             fmt.Sprintf("%d", port),
		MulticastAddress: address4,
		Payload:          query,
		Delay:            timeout / 10,
		TimeLimit:        timeout,
		StopChan:         f.stopChan,
		Notify:           f.notify,
		IPVersion:        peerdiscovery.IPv4,
	}
	if ipv6 {
		settings.MulticastAddress = address6
		settings.IPVersion = peerdiscovery.IPv6
	}

	if _, err := peerdiscovery.Discover(settings); err != nil {
		return Responder{}, err
	}

	if r, ok := f.result(); ok {
		log.WithField("responder", r).Info("Discovered responder")
		return r, nil
	}
	return Responder{}, fmt.Errorf("no responder was discovered within %v", timeout)
}

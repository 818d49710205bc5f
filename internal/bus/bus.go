// SPDX-License-Identifier: MIT

// Package bus implements the in-process publish/subscribe fabric that
// decouples the Service event loop from the Scheduler, Alarm and host
// notification bridge. It mirrors the notify/request split the host's
// JSON-RPC bus exposes: outbound messages are sent under their bare
// method name, inbound ones arrive prefixed under an "Other." namespace.
package bus

import (
	"context"
	"encoding/json"
)

// Message is one unit of traffic on the bus: a method name and an
// optional JSON payload, carried verbatim from or to the host.
type Message struct {
	Method  string
	Payload json.RawMessage
}

// Bus is the minimal pub/sub contract the rest of the engine depends on.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// Subscriber receives messages published to the topic it was created for.
type Subscriber interface {
	C() <-chan Message
	Close() error
}

// Addon-internal send/receive method names. A message sent under Send is
// observed, from the host's perspective, arriving under Recv, matching
// the "Other.<addon-id>.<Method>" echo the host's notification bus applies
// to third-party JSON-RPC traffic.
const (
	addonID = "service.nfosync"
)

// Send returns the method name used when publishing a request onto the
// bus (e.g. "service.nfosync.SyncAll").
func Send(method string) string {
	return addonID + "." + method
}

// Recv returns the method name the host rebroadcasts a Send message
// under (e.g. "Other.service.nfosync.SyncAll").
func Recv(method string) string {
	return "Other." + addonID + "." + method
}

// Host-originated topics the engine listens to directly: these are not
// addon-namespaced, they are the host's own library and player events.
const (
	TopicLibraryOnUpdate       = "VideoLibrary.OnUpdate"
	TopicLibraryOnRemove       = "VideoLibrary.OnRemove"
	TopicLibraryOnCleanStart   = "VideoLibrary.OnCleanStarted"
	TopicLibraryOnCleanFinish  = "VideoLibrary.OnCleanFinished"
	TopicLibraryOnScanStarted  = "VideoLibrary.OnScanStarted"
	TopicLibraryOnScanFinished = "VideoLibrary.OnScanFinished"
	TopicPlayerOnPlay          = "Player.OnPlay"
	TopicPlayerOnResume        = "Player.OnResume"
	TopicPlayerOnStop          = "Player.OnStop"
)

// Addon-namespaced action requests, published internally by the Service
// and picked up by the Scheduler, and the timer fire the Alarm emits.
const (
	MethodSyncAll      = "SyncAll"
	MethodSyncOne      = "SyncOne"
	MethodImportAll    = "ImportAll"
	MethodImportOne    = "ImportOne"
	MethodExportAll    = "ExportAll"
	MethodExportOne    = "ExportOne"
	MethodWriteChanges = "WriteChanges"
	MethodAlarmFired   = "AlarmFired"
	MethodWaitDone     = "WaitDone"
)

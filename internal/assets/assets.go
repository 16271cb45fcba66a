// Package assets holds the in-page scripts injected into the IDE's
// renderer over the debugging protocol.
package assets

import (
	_ "embed"
	"strings"
)

//go:embed peer_bridge.js
var peerBridgeJS string

//go:embed action_peer.js
var actionPeerJS string

// PeerBridgeCheck is true in pages where the chat peer is already
// installed.
const PeerBridgeCheck = `typeof window.__antibridgePeer !== 'undefined'`

// ActionPeerCheck is true in pages where the action peer is already
// installed.
const ActionPeerCheck = `typeof window.__antibridgeActionPeer !== 'undefined'`

// PeerBridge returns the chat peer script bound to the bridge port.
func PeerBridge(port string) string {
	return strings.ReplaceAll(peerBridgeJS, "{{PORT}}", port)
}

// ActionPeer returns the action peer script bound to the bridge port.
func ActionPeer(port string) string {
	return strings.ReplaceAll(actionPeerJS, "{{PORT}}", port)
}

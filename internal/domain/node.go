// Package domain holds the entity and value types shared by every core
// component: users, roles, permissions, entitlement edges, subscriptions,
// emote sets, webhook events, cron jobs, and the event taxonomy.
package domain

import "fmt"

// NodeKind tags one side of an entitlement edge. Every edge endpoint is one
// of these variants; the pair (from, to) is always a NodeKind/id pair.
type NodeKind string

const (
	NodeUser                        NodeKind = "user"
	NodeRole                        NodeKind = "role"
	NodeBadge                       NodeKind = "badge"
	NodePaint                       NodeKind = "paint"
	NodeEmoteSet                    NodeKind = "emote_set"
	NodeProduct                     NodeKind = "product"
	NodeSubscriptionBenefit         NodeKind = "subscription_benefit"
	NodeSubscription                NodeKind = "subscription"
	NodeSpecialEvent                NodeKind = "special_event"
	NodeGlobalDefaultEntitlementGroup NodeKind = "global_default_entitlement_group"
)

// Node is a tagged-union identifier for one endpoint of an entitlement edge.
// ID is empty for the singleton GlobalDefaultEntitlementGroup node.
type Node struct {
	Kind NodeKind `bson:"kind"`
	ID   string   `bson:"id,omitempty"`
}

func (n Node) String() string {
	if n.ID == "" {
		return string(n.Kind)
	}
	return fmt.Sprintf("%s:%s", n.Kind, n.ID)
}

// HasInbound and HasOutbound give the per-variant direction validity of
// entitlement edges: Badge, Paint and EmoteSet nodes are pure sinks (nothing
// points further out from them in this graph) and the global default group
// is a pure source.
func (n Node) HasInbound() bool {
	switch n.Kind {
	case NodeGlobalDefaultEntitlementGroup:
		return false
	default:
		return true
	}
}

func (n Node) HasOutbound() bool {
	switch n.Kind {
	case NodeBadge, NodePaint, NodeEmoteSet:
		return false
	default:
		return true
	}
}

func UserNode(userID string) Node           { return Node{Kind: NodeUser, ID: userID} }
func RoleNode(roleID string) Node           { return Node{Kind: NodeRole, ID: roleID} }
func BadgeNode(badgeID string) Node         { return Node{Kind: NodeBadge, ID: badgeID} }
func PaintNode(paintID string) Node         { return Node{Kind: NodePaint, ID: paintID} }
func EmoteSetNode(emoteSetID string) Node   { return Node{Kind: NodeEmoteSet, ID: emoteSetID} }
func ProductNode(productID string) Node     { return Node{Kind: NodeProduct, ID: productID} }
func SubscriptionBenefitNode(id string) Node {
	return Node{Kind: NodeSubscriptionBenefit, ID: id}
}
func SubscriptionNode(subscriptionID string) Node {
	return Node{Kind: NodeSubscription, ID: subscriptionID}
}
func SpecialEventNode(id string) Node { return Node{Kind: NodeSpecialEvent, ID: id} }

// GlobalDefaultEntitlementGroup is the singleton seed every user's
// traversal includes alongside their own User node (§4.5).
var GlobalDefaultEntitlementGroup = Node{Kind: NodeGlobalDefaultEntitlementGroup}

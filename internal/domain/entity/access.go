package entity

import "time"

type AccessKind string

const (
	AccessNotPurchased AccessKind = "not_purchased"
	AccessPurchased    AccessKind = "purchased"
	AccessOwned        AccessKind = "owned"
)

// Access is a viewer's derived relationship to a content item. It is computed
// from the viewer's access grants and is never stored on the item itself.
type Access struct {
	Kind AccessKind
	At   time.Time
}

func (a Access) Granted() bool {
	return a.Kind == AccessPurchased || a.Kind == AccessOwned
}

// AccessFor derives what viewer may do with item. A nil viewer is anonymous.
func AccessFor(viewer *Account, item *ContentItem) Access {
	if viewer == nil {
		return Access{Kind: AccessNotPurchased}
	}
	if viewer.ID() == item.OwnerID() {
		return Access{Kind: AccessOwned, At: item.CreatedAt()}
	}
	if at, ok := viewer.PurchasedAt(item.ID()); ok {
		return Access{Kind: AccessPurchased, At: at}
	}
	return Access{Kind: AccessNotPurchased}
}

// ContentView pairs an item with the access state of whoever asked for it.
type ContentView struct {
	Item   *ContentItem
	Access Access
}

func NewContentView(viewer *Account, item *ContentItem) ContentView {
	return ContentView{Item: item, Access: AccessFor(viewer, item)}
}

package cache

import "chatkit/models"

// Snapshot is an opaque copy of one conversation's thread state, taken before
// an optimistic mutation so a failed send can roll back exactly.
type Snapshot struct {
	conversationID string
	present        bool
	order          []string
	byID           map[string]models.Message
	pendingBySender map[string][]string
}

// Snapshot captures the current thread state of one conversation.
func (c *Cache) Snapshot(conversationID string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{conversationID: conversationID}
	t, ok := c.threads[conversationID]
	if !ok {
		return snap
	}

	snap.present = true
	snap.order = append([]string(nil), t.order...)
	snap.byID = make(map[string]models.Message, len(t.byID))
	for id, msg := range t.byID {
		snap.byID[id] = msg
	}
	snap.pendingBySender = make(map[string][]string, len(t.pendingBySender))
	for sender, ids := range t.pendingBySender {
		snap.pendingBySender[sender] = append([]string(nil), ids...)
	}
	return snap
}

// Restore puts a conversation's thread back to a snapshot taken earlier.
func (c *Cache) Restore(snap Snapshot) {
	c.mu.Lock()
	if !snap.present {
		delete(c.threads, snap.conversationID)
	} else {
		c.threads[snap.conversationID] = &thread{
			order:           append([]string(nil), snap.order...),
			byID:            snap.byID,
			pendingBySender: snap.pendingBySender,
		}
	}
	c.mu.Unlock()

	c.notify()
}

// Reconcile merges a server-confirmed message into the thread, replacing the
// optimistic temp-id entry.
//
// Two merge paths: exact id match (the canonical message already arrived via
// the channel — the temp entry is dropped and the canonical record merged
// over the echo, since the echo carries only ciphertext) and the optimistic
// merge (the temp entry from the same sender is swapped in place for the
// canonical message). Exactly one canonical entry remains in either case.
func (c *Cache) Reconcile(conversationID, senderID, tempID string, canonical models.Message) {
	c.mu.Lock()
	t := c.threadLocked(conversationID)

	if existing, exists := t.byID[canonical.ID]; exists {
		merged := canonical
		if models.StatusRank(existing.Status) > models.StatusRank(canonical.Status) {
			merged.Status = existing.Status
		}
		t.byID[canonical.ID] = merged
		t.removeLocked(tempID)
		c.mu.Unlock()

		c.notify()
		return
	}

	if _, hasTemp := t.byID[tempID]; hasTemp {
		for i, id := range t.order {
			if id == tempID {
				t.order[i] = canonical.ID
				break
			}
		}
		delete(t.byID, tempID)
		t.byID[canonical.ID] = canonical
		t.dropPendingLocked(senderID, tempID)
		c.mu.Unlock()

		c.notify()
		return
	}

	// Temp entry vanished (e.g. thread was replaced); insert canonical as newest.
	t.order = append([]string{canonical.ID}, t.order...)
	t.byID[canonical.ID] = canonical
	c.mu.Unlock()

	c.notify()
}

// PendingIDs returns the sender's optimistic temp ids, oldest first.
func (c *Cache) PendingIDs(conversationID, senderID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.threads[conversationID]
	if !ok {
		return nil
	}
	return append([]string(nil), t.pendingBySender[senderID]...)
}

func (t *thread) dropPendingLocked(senderID, tempID string) {
	ids := t.pendingBySender[senderID]
	for i, id := range ids {
		if id == tempID {
			t.pendingBySender[senderID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(t.pendingBySender[senderID]) == 0 {
		delete(t.pendingBySender, senderID)
	}
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"chatkit/api"
	"chatkit/cache"
	"chatkit/crypto"
	"chatkit/directory"
	"chatkit/models"
	"chatkit/storage"
)

// fakeAPI is an in-memory api.Client. SelfID scopes key bundle reads to the
// acting user so two controllers can share one fake in a scenario test.
type fakeAPI struct {
	mu sync.Mutex

	SelfID string

	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	publicKeys    map[string]string
	bundles       map[string]map[string]api.KeyBundle
	backup        *api.KeyBackupResponse

	sendErr      error
	nextServerID int

	sentRequests    []api.SendMessageRequest
	keyUpdates      []api.UpdateKeysRequest
	markedRead      []string
	listMessageHits int
	publicKeyHits   int
}

func newFakeAPI(selfID string) *fakeAPI {
	return &fakeAPI{
		SelfID:        selfID,
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		publicKeys:    make(map[string]string),
		bundles:       make(map[string]map[string]api.KeyBundle),
	}
}

func (f *fakeAPI) addConversation(conversation models.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conversation.ID] = conversation
}

func (f *fakeAPI) addPublicKey(userID string, key *[crypto.KeySize]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publicKeys[userID] = crypto.EncodeKey(key)
}

func (f *fakeAPI) setBundle(conversationID string, bundle api.KeyBundle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bundles[conversationID] == nil {
		f.bundles[conversationID] = make(map[string]api.KeyBundle)
	}
	f.bundles[conversationID][bundle.RecipientUserID] = bundle
}

func (f *fakeAPI) ListConversations(_ context.Context, _ api.ConversationFilters) (*api.ConversationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	page := &api.ConversationPage{}
	for _, conversation := range f.conversations {
		page.Data = append(page.Data, conversation)
	}
	return page, nil
}

func (f *fakeAPI) GetConversation(_ context.Context, conversationID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conversation, ok := f.conversations[conversationID]
	if !ok {
		return nil, api.ErrNotFound
	}
	return &conversation, nil
}

func (f *fakeAPI) CreateConversation(_ context.Context, req api.CreateConversationRequest) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	participants := []models.Participant{{ID: f.SelfID}}
	for _, id := range req.ParticipantIDs {
		participants = append(participants, models.Participant{ID: id})
	}
	conversation := models.Conversation{
		ID:           fmt.Sprintf("conv-%d", len(f.conversations)+1),
		Type:         req.Type,
		Participants: participants,
		GroupName:    req.GroupName,
	}
	f.conversations[conversation.ID] = conversation
	return &conversation, nil
}

func (f *fakeAPI) ListMessages(_ context.Context, conversationID string, query api.MessageQuery) (*api.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listMessageHits++
	all := f.messages[conversationID]

	start := 0
	if query.Before != "" {
		for i, message := range all {
			if message.ID == query.Before {
				start = i + 1
				break
			}
		}
	}

	limit := query.Limit
	if limit <= 0 {
		limit = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	page := &api.MessagePage{Data: append([]models.Message(nil), all[start:end]...)}
	page.Pagination.HasMore = end < len(all)
	if len(page.Data) > 0 {
		page.Pagination.OldestID = page.Data[len(page.Data)-1].ID
	}
	return page, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, conversationID string, req api.SendMessageRequest) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}

	f.sentRequests = append(f.sentRequests, req)
	f.nextServerID++

	message := models.Message{
		ID:               fmt.Sprintf("srv-%d", f.nextServerID),
		ConversationID:   conversationID,
		SenderID:         f.SelfID,
		ContentType:      req.ContentType,
		EncryptedContent: req.EncryptedContent,
		Nonce:            req.Nonce,
		IsEncrypted:      req.IsEncrypted,
		MediaURL:         req.MediaURL,
		MediaDuration:    req.MediaDuration,
		ReplyToID:        req.ReplyToID,
		Status:           models.StatusSent,
		CreatedAt:        time.Now().UnixMilli(),
	}
	f.messages[conversationID] = append([]models.Message{message}, f.messages[conversationID]...)
	return &message, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, messageID string) error {
	return nil
}

func (f *fakeAPI) AddReaction(_ context.Context, messageID, emoji string) error {
	return nil
}

func (f *fakeAPI) RemoveReaction(_ context.Context, messageID, emoji string) error {
	return nil
}

func (f *fakeAPI) GetUserPublicKey(_ context.Context, userID string) (*api.PublicKeyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.publicKeyHits++
	key, ok := f.publicKeys[userID]
	if !ok {
		return nil, api.ErrNotFound
	}
	return &api.PublicKeyResponse{UserID: userID, PublicKey: key}, nil
}

func (f *fakeAPI) UpdateEncryptionKeys(_ context.Context, req api.UpdateKeysRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keyUpdates = append(f.keyUpdates, req)
	f.publicKeys[f.SelfID] = req.PublicKey
	if req.EncryptedPrivateKey != "" {
		f.backup = &api.KeyBackupResponse{
			EncryptedPrivateKey: req.EncryptedPrivateKey,
			Nonce:               req.Nonce,
			Salt:                req.Salt,
		}
	}
	return nil
}

func (f *fakeAPI) GetEncryptionKeyBackup(_ context.Context) (*api.KeyBackupResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.backup == nil {
		return nil, api.ErrNotFound
	}
	return f.backup, nil
}

func (f *fakeAPI) GetConversationKeyBundle(_ context.Context, conversationID string) (*api.KeyBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bundle, ok := f.bundles[conversationID][f.SelfID]
	if !ok {
		return nil, api.ErrNotFound
	}
	return &bundle, nil
}

func (f *fakeAPI) CreateConversationKeyBundles(_ context.Context, conversationID string, bundles []api.KeyBundle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bundles[conversationID] == nil {
		f.bundles[conversationID] = make(map[string]api.KeyBundle)
	}
	for _, bundle := range bundles {
		f.bundles[conversationID][bundle.RecipientUserID] = bundle
	}
	return nil
}

func (f *fakeAPI) MarkConversationAsRead(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.markedRead = append(f.markedRead, conversationID)
	return nil
}

func (f *fakeAPI) GetOnlineContacts(_ context.Context) (*api.OnlineContactsResponse, error) {
	return &api.OnlineContactsResponse{}, nil
}

// fakeChannel records emissions and lets tests push inbound events.
type fakeChannel struct {
	mu         sync.Mutex
	handlers   []func([]byte)
	reconnects []func()
	joined     []string
	left       []string
	emitted    []string
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeChannel) Join(conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, conversationID)
	return nil
}

func (f *fakeChannel) Leave(conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, conversationID)
	return nil
}

func (f *fakeChannel) OnEvent(handler func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
}

func (f *fakeChannel) OnReconnect(handler func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects = append(f.reconnects, handler)
}

func (f *fakeChannel) push(t *testing.T, event any) {
	t.Helper()

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	f.mu.Lock()
	handlers := append([]func([]byte){}, f.handlers...)
	f.mu.Unlock()

	for _, handler := range handlers {
		handler(payload)
	}
}

func (f *fakeChannel) reconnect() {
	f.mu.Lock()
	reconnects := append([]func(){}, f.reconnects...)
	f.mu.Unlock()

	for _, handler := range reconnects {
		handler()
	}
}

// testEnv wires one user's full stack over shared fakes.
type testEnv struct {
	controller *Controller
	api        *fakeAPI
	channel    *fakeChannel
	cache      *cache.Cache
	store      *storage.Store
	keys       *crypto.KeyPair
	userID     string
	errs       *errorLog
}

type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) record(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

func newTestEnv(t *testing.T, userID string, client *fakeAPI) *testEnv {
	t.Helper()

	store, _, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	client.addPublicKey(userID, keys.Public)

	dir, err := directory.New(client, store)
	if err != nil {
		t.Fatalf("create directory: %v", err)
	}

	ch := &fakeChannel{}
	messageCache := cache.New()
	errs := &errorLog{}

	controller, err := NewController(Options{
		API:       client,
		Channel:   ch,
		Cache:     messageCache,
		Directory: dir,
		Store:     store,
		UserID:    userID,
		KeyPair:   keys,
		OnError:   errs.record,
	})
	if err != nil {
		t.Fatalf("create controller: %v", err)
	}

	if err := controller.Start(); err != nil {
		t.Fatalf("start controller: %v", err)
	}
	t.Cleanup(controller.Close)

	return &testEnv{
		controller: controller,
		api:        client,
		channel:    ch,
		cache:      messageCache,
		store:      store,
		keys:       keys,
		userID:     userID,
		errs:       errs,
	}
}

func directConversation(id, a, b string) models.Conversation {
	return models.Conversation{
		ID:   id,
		Type: models.ConversationDirect,
		Participants: []models.Participant{
			{ID: a}, {ID: b},
		},
	}
}

func groupConversation(id string, memberIDs ...string) models.Conversation {
	participants := make([]models.Participant, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		participants = append(participants, models.Participant{ID: memberID})
	}
	return models.Conversation{
		ID:           id,
		Type:         models.ConversationGroup,
		Participants: participants,
		GroupName:    "Group",
	}
}

// mustKeyPairFor registers a fresh keypair for a remote user and returns it.
func mustKeyPairFor(t *testing.T, client *fakeAPI, userID string) *crypto.KeyPair {
	t.Helper()

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair for %q: %v", userID, err)
	}
	client.addPublicKey(userID, pair.Public)
	return pair
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

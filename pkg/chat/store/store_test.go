package store

import (
	"context"
	"errors"
	"testing"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return store
}

func registerTestUser(t *testing.T, s *Store, userID string) *models.User {
	t.Helper()
	user, err := s.RegisterUser(context.Background(), userID, userID+"-nick", "secret")
	if err != nil {
		t.Fatalf("failed to register %s: %v", userID, err)
	}
	return user
}

func TestConfig(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected sqlite, got %s", config.Type)
		}
	})

	t.Run("invalid type returns error", func(t *testing.T) {
		_, err := New(&Config{Type: "invalid"})
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("postgres defaults", func(t *testing.T) {
		config := &Config{Type: DatabaseTypePostgres}
		config.ApplyDefaults()

		if config.Postgres.Port != 5432 {
			t.Errorf("expected port 5432, got %d", config.Postgres.Port)
		}
		if config.Postgres.SSLMode != "disable" {
			t.Errorf("expected sslmode disable, got %s", config.Postgres.SSLMode)
		}
	})
}

func TestUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("register and fetch", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")

		user, err := s.GetUser(ctx, "alice")
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if user.Nickname != "alice-nick" {
			t.Errorf("nickname = %q", user.Nickname)
		}
		if user.PasswordHash == "secret" {
			t.Error("password stored in clear")
		}
		if user.CreatedAt == 0 {
			t.Error("created_at not set")
		}
	})

	t.Run("duplicate user id rejected", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")

		_, err := s.RegisterUser(ctx, "alice", "other", "pw")
		if !errors.Is(err, models.ErrDuplicateUser) {
			t.Errorf("expected ErrDuplicateUser, got %v", err)
		}
	})

	t.Run("validate credentials", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")

		user, err := s.ValidateCredentials(ctx, "alice", "secret")
		if err != nil {
			t.Fatalf("ValidateCredentials: %v", err)
		}
		if user.UserID != "alice" {
			t.Errorf("user_id = %q", user.UserID)
		}

		if _, err := s.ValidateCredentials(ctx, "alice", "wrong"); !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := s.ValidateCredentials(ctx, "nobody", "secret"); !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("user exists", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")

		exists, err := s.UserExists(ctx, "alice")
		if err != nil || !exists {
			t.Errorf("UserExists(alice) = %v, %v", exists, err)
		}
		exists, err = s.UserExists(ctx, "bob")
		if err != nil || exists {
			t.Errorf("UserExists(bob) = %v, %v", exists, err)
		}
	})
}

func TestGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("create sets owner membership", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")

		group, err := s.CreateGroup(ctx, "devs", "alice")
		if err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}
		if len(group.GroupID) != 32 {
			t.Errorf("group id = %q, want 32 hex chars", group.GroupID)
		}

		role, err := s.GetMemberRole(ctx, group.GroupID, "alice")
		if err != nil {
			t.Fatalf("GetMemberRole: %v", err)
		}
		if role != models.RoleOwner {
			t.Errorf("role = %q, want owner", role)
		}
	})

	t.Run("join and leave", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")
		group, _ := s.CreateGroup(ctx, "devs", "alice")

		if err := s.JoinGroup(ctx, group.GroupID, "bob"); err != nil {
			t.Fatalf("JoinGroup: %v", err)
		}
		if err := s.JoinGroup(ctx, group.GroupID, "bob"); !errors.Is(err, models.ErrAlreadyMember) {
			t.Errorf("double join: expected ErrAlreadyMember, got %v", err)
		}
		if err := s.JoinGroup(ctx, "missing", "bob"); !errors.Is(err, models.ErrGroupNotFound) {
			t.Errorf("join missing group: expected ErrGroupNotFound, got %v", err)
		}

		members, err := s.GroupMemberIDs(ctx, group.GroupID)
		if err != nil {
			t.Fatalf("GroupMemberIDs: %v", err)
		}
		if len(members) != 2 {
			t.Errorf("members = %v", members)
		}

		if err := s.LeaveGroup(ctx, group.GroupID, "bob"); err != nil {
			t.Fatalf("LeaveGroup: %v", err)
		}
		if err := s.LeaveGroup(ctx, group.GroupID, "alice"); !errors.Is(err, models.ErrOwnerCannotLeave) {
			t.Errorf("owner leave: expected ErrOwnerCannotLeave, got %v", err)
		}
	})

	t.Run("rename requires owner or admin", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")
		group, _ := s.CreateGroup(ctx, "devs", "alice")
		_ = s.JoinGroup(ctx, group.GroupID, "bob")

		if err := s.RenameGroup(ctx, group.GroupID, "bob", "ops"); !errors.Is(err, models.ErrPermissionDenied) {
			t.Errorf("member rename: expected ErrPermissionDenied, got %v", err)
		}
		if err := s.RenameGroup(ctx, group.GroupID, "alice", "ops"); err != nil {
			t.Fatalf("owner rename: %v", err)
		}

		updated, _ := s.GetGroup(ctx, group.GroupID)
		if updated.Name != "ops" {
			t.Errorf("name = %q", updated.Name)
		}

		// Promoted admins may rename too
		if err := s.SetAdmin(ctx, group.GroupID, "alice", "bob", true); err != nil {
			t.Fatalf("SetAdmin: %v", err)
		}
		if err := s.RenameGroup(ctx, group.GroupID, "bob", "platform"); err != nil {
			t.Errorf("admin rename: %v", err)
		}
	})

	t.Run("kick permissions", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")
		registerTestUser(t, s, "carol")
		group, _ := s.CreateGroup(ctx, "devs", "alice")
		_ = s.JoinGroup(ctx, group.GroupID, "bob")
		_ = s.JoinGroup(ctx, group.GroupID, "carol")
		_ = s.SetAdmin(ctx, group.GroupID, "alice", "bob", true)

		if err := s.KickMember(ctx, group.GroupID, "carol", "bob"); !errors.Is(err, models.ErrPermissionDenied) {
			t.Errorf("member kick: expected ErrPermissionDenied, got %v", err)
		}
		if err := s.KickMember(ctx, group.GroupID, "bob", "alice"); !errors.Is(err, models.ErrCannotKickOwner) {
			t.Errorf("kick owner: expected ErrCannotKickOwner, got %v", err)
		}

		registerTestUser(t, s, "dave")
		_ = s.JoinGroup(ctx, group.GroupID, "dave")
		_ = s.SetAdmin(ctx, group.GroupID, "alice", "dave", true)
		if err := s.KickMember(ctx, group.GroupID, "bob", "dave"); !errors.Is(err, models.ErrAdminKickAdmin) {
			t.Errorf("admin kick admin: expected ErrAdminKickAdmin, got %v", err)
		}

		if err := s.KickMember(ctx, group.GroupID, "bob", "carol"); err != nil {
			t.Fatalf("admin kick member: %v", err)
		}
		if _, err := s.GetMemberRole(ctx, group.GroupID, "carol"); !errors.Is(err, models.ErrNotGroupMember) {
			t.Errorf("kicked member still present: %v", err)
		}
	})

	t.Run("set admin restrictions", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")
		group, _ := s.CreateGroup(ctx, "devs", "alice")
		_ = s.JoinGroup(ctx, group.GroupID, "bob")

		if err := s.SetAdmin(ctx, group.GroupID, "bob", "bob", true); !errors.Is(err, models.ErrNotGroupOwner) {
			t.Errorf("non-owner promote: expected ErrNotGroupOwner, got %v", err)
		}
		if err := s.SetAdmin(ctx, group.GroupID, "alice", "alice", false); !errors.Is(err, models.ErrCannotChangeOwner) {
			t.Errorf("demote owner: expected ErrCannotChangeOwner, got %v", err)
		}

		if err := s.SetAdmin(ctx, group.GroupID, "alice", "bob", true); err != nil {
			t.Fatalf("promote: %v", err)
		}
		role, _ := s.GetMemberRole(ctx, group.GroupID, "bob")
		if role != models.RoleAdmin {
			t.Errorf("role = %q, want admin", role)
		}

		if err := s.SetAdmin(ctx, group.GroupID, "alice", "bob", false); err != nil {
			t.Fatalf("demote: %v", err)
		}
		role, _ = s.GetMemberRole(ctx, group.GroupID, "bob")
		if role != models.RoleMember {
			t.Errorf("role = %q, want member", role)
		}
	})

	t.Run("dissolve cascades", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")
		group, _ := s.CreateGroup(ctx, "devs", "alice")
		_ = s.JoinGroup(ctx, group.GroupID, "bob")

		msg := &models.Message{
			ConversationType: models.ConversationGroup,
			ConversationID:   group.GroupID,
			SenderID:         "alice",
			SenderNickname:   "alice-nick",
			Content:          "hello",
		}
		if _, err := s.StoreMessage(ctx, msg, []string{"bob"}); err != nil {
			t.Fatalf("StoreMessage: %v", err)
		}

		if err := s.DissolveGroup(ctx, group.GroupID, "bob"); !errors.Is(err, models.ErrNotGroupOwner) {
			t.Errorf("member dissolve: expected ErrNotGroupOwner, got %v", err)
		}
		if err := s.DissolveGroup(ctx, group.GroupID, "alice"); err != nil {
			t.Fatalf("DissolveGroup: %v", err)
		}

		if _, err := s.GetGroup(ctx, group.GroupID); !errors.Is(err, models.ErrGroupNotFound) {
			t.Errorf("group survived dissolve: %v", err)
		}
		pending, err := s.FetchUndeliveredMessages(ctx, "bob", 10)
		if err != nil {
			t.Fatalf("FetchUndeliveredMessages: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("spool survived dissolve: %d messages", len(pending))
		}
	})
}

func TestMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("store and drain spool", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")

		msg := &models.Message{
			ConversationType: models.ConversationPrivate,
			ConversationID:   "bob",
			SenderID:         "alice",
			SenderNickname:   "alice-nick",
			Content:          "hi bob",
		}
		stored, err := s.StoreMessage(ctx, msg, []string{"bob"})
		if err != nil {
			t.Fatalf("StoreMessage: %v", err)
		}
		if stored.MessageID == 0 {
			t.Fatal("message id not assigned")
		}
		if stored.CreatedAt == 0 {
			t.Error("created_at not set")
		}

		pending, err := s.FetchUndeliveredMessages(ctx, "bob", 10)
		if err != nil {
			t.Fatalf("FetchUndeliveredMessages: %v", err)
		}
		if len(pending) != 1 || pending[0].Content != "hi bob" {
			t.Fatalf("pending = %+v", pending)
		}

		if err := s.MarkMessagesDelivered(ctx, "bob", []int64{stored.MessageID}); err != nil {
			t.Fatalf("MarkMessagesDelivered: %v", err)
		}
		pending, _ = s.FetchUndeliveredMessages(ctx, "bob", 10)
		if len(pending) != 0 {
			t.Errorf("spool not drained: %d messages", len(pending))
		}
	})

	t.Run("recipients deduplicated", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")

		msg := &models.Message{
			ConversationType: models.ConversationPrivate,
			ConversationID:   "bob",
			SenderID:         "alice",
			SenderNickname:   "alice-nick",
			Content:          "once",
		}
		if _, err := s.StoreMessage(ctx, msg, []string{"bob", "bob"}); err != nil {
			t.Fatalf("StoreMessage: %v", err)
		}

		pending, _ := s.FetchUndeliveredMessages(ctx, "bob", 10)
		if len(pending) != 1 {
			t.Errorf("expected 1 pending, got %d", len(pending))
		}
	})

	t.Run("spool ordered and limited", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")

		for i := 0; i < 5; i++ {
			msg := &models.Message{
				ConversationType: models.ConversationPrivate,
				ConversationID:   "bob",
				SenderID:         "alice",
				SenderNickname:   "alice-nick",
				Content:          string(rune('a' + i)),
			}
			if _, err := s.StoreMessage(ctx, msg, []string{"bob"}); err != nil {
				t.Fatalf("StoreMessage: %v", err)
			}
		}

		pending, err := s.FetchUndeliveredMessages(ctx, "bob", 3)
		if err != nil {
			t.Fatalf("FetchUndeliveredMessages: %v", err)
		}
		if len(pending) != 3 {
			t.Fatalf("expected 3, got %d", len(pending))
		}
		for i := 1; i < len(pending); i++ {
			if pending[i].MessageID <= pending[i-1].MessageID {
				t.Errorf("spool out of order: %d then %d", pending[i-1].MessageID, pending[i].MessageID)
			}
		}
	})

	t.Run("history pages backward", func(t *testing.T) {
		s := createTestStore(t)
		registerTestUser(t, s, "alice")
		registerTestUser(t, s, "bob")

		var ids []int64
		for i := 0; i < 5; i++ {
			msg := &models.Message{
				ConversationType: models.ConversationPrivate,
				ConversationID:   "bob",
				SenderID:         "alice",
				SenderNickname:   "alice-nick",
				Content:          string(rune('a' + i)),
			}
			stored, err := s.StoreMessage(ctx, msg, []string{"bob"})
			if err != nil {
				t.Fatalf("StoreMessage: %v", err)
			}
			ids = append(ids, stored.MessageID)
		}

		// Newest page
		page, next, err := s.FetchHistory(ctx, models.ConversationPrivate, "bob", 0, 2)
		if err != nil {
			t.Fatalf("FetchHistory: %v", err)
		}
		if len(page) != 2 || page[0].MessageID != ids[3] || page[1].MessageID != ids[4] {
			t.Fatalf("newest page = %+v", page)
		}
		if next != ids[3] {
			t.Errorf("next = %d, want %d", next, ids[3])
		}

		// Older page from cursor
		page, next, err = s.FetchHistory(ctx, models.ConversationPrivate, "bob", next, 2)
		if err != nil {
			t.Fatalf("FetchHistory: %v", err)
		}
		if len(page) != 2 || page[0].MessageID != ids[1] || page[1].MessageID != ids[2] {
			t.Fatalf("older page = %+v", page)
		}

		// Final partial page exhausts the cursor
		page, next, err = s.FetchHistory(ctx, models.ConversationPrivate, "bob", next, 2)
		if err != nil {
			t.Fatalf("FetchHistory: %v", err)
		}
		if len(page) != 1 || page[0].MessageID != ids[0] {
			t.Fatalf("final page = %+v", page)
		}
		if next != 0 {
			t.Errorf("exhausted cursor = %d, want 0", next)
		}
	})
}

func TestFiles(t *testing.T) {
	ctx := context.Background()

	newTestFile := func(fileID string) (*models.File, *models.FileUpload) {
		file := &models.File{
			FileID:           fileID,
			UploaderID:       "alice",
			UploaderNickname: "alice-nick",
			ConversationType: models.ConversationPrivate,
			ConversationID:   "bob",
			FileName:         "report.pdf",
			FileSize:         1024,
			Sha256:           "aa11",
			StoragePath:      "/tmp/files/" + fileID + "_report.pdf",
		}
		upload := &models.FileUpload{
			UploaderID: "alice",
			TempPath:   "/tmp/tmp/" + fileID + ".part",
		}
		return file, upload
	}

	t.Run("create upload lifecycle", func(t *testing.T) {
		s := createTestStore(t)
		file, upload := newTestFile("f1")

		if err := s.CreateFileUpload(ctx, file, upload, []string{"alice", "bob", "bob"}); err != nil {
			t.Fatalf("CreateFileUpload: %v", err)
		}

		targets, err := s.FileTargetIDs(ctx, "f1")
		if err != nil {
			t.Fatalf("FileTargetIDs: %v", err)
		}
		if len(targets) != 2 {
			t.Errorf("targets = %v, want deduped pair", targets)
		}

		uploading, _ := s.IsUploading(ctx, "f1")
		if !uploading {
			t.Error("expected file to be uploading")
		}

		if err := s.SetUploadedSize(ctx, "f1", 512); err != nil {
			t.Fatalf("SetUploadedSize: %v", err)
		}
		u, err := s.GetUpload(ctx, "f1")
		if err != nil {
			t.Fatalf("GetUpload: %v", err)
		}
		if u.UploadedSize != 512 {
			t.Errorf("uploaded_size = %d", u.UploadedSize)
		}

		if err := s.DeleteUpload(ctx, "f1"); err != nil {
			t.Fatalf("DeleteUpload: %v", err)
		}
		uploading, _ = s.IsUploading(ctx, "f1")
		if uploading {
			t.Error("upload row survived finalize")
		}
		if _, err := s.GetUpload(ctx, "f1"); !errors.Is(err, models.ErrUploadNotFound) {
			t.Errorf("expected ErrUploadNotFound, got %v", err)
		}
	})

	t.Run("undelivered excludes in-flight uploads", func(t *testing.T) {
		s := createTestStore(t)
		file, upload := newTestFile("f1")
		if err := s.CreateFileUpload(ctx, file, upload, []string{"bob"}); err != nil {
			t.Fatalf("CreateFileUpload: %v", err)
		}

		pending, err := s.FetchUndeliveredFiles(ctx, "bob", 10)
		if err != nil {
			t.Fatalf("FetchUndeliveredFiles: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("in-flight upload leaked into spool: %d", len(pending))
		}

		_ = s.DeleteUpload(ctx, "f1")
		pending, _ = s.FetchUndeliveredFiles(ctx, "bob", 10)
		if len(pending) != 1 {
			t.Fatalf("expected 1 pending notice, got %d", len(pending))
		}

		if err := s.MarkFilesDelivered(ctx, "bob", []string{"f1"}); err != nil {
			t.Fatalf("MarkFilesDelivered: %v", err)
		}
		pending, _ = s.FetchUndeliveredFiles(ctx, "bob", 10)
		if len(pending) != 0 {
			t.Errorf("spool not drained: %d", len(pending))
		}
	})

	t.Run("target membership", func(t *testing.T) {
		s := createTestStore(t)
		file, upload := newTestFile("f1")
		if err := s.CreateFileUpload(ctx, file, upload, []string{"bob"}); err != nil {
			t.Fatalf("CreateFileUpload: %v", err)
		}

		ok, _ := s.HasFileTarget(ctx, "f1", "bob")
		if !ok {
			t.Error("bob missing from target set")
		}
		ok, _ = s.HasFileTarget(ctx, "f1", "mallory")
		if ok {
			t.Error("mallory granted access")
		}
	})
}

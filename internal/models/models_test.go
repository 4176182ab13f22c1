package models_test

import (
	"encoding/json"
	"strings"
	"testing"

	"teamhub/backend/internal/models"

	"github.com/gofrs/uuid"
)

func TestUser_BeforeCreateAssignsID(t *testing.T) {
	user := models.User{Email: "a@example.com"}
	if err := user.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate returned error: %v", err)
	}
	if user.ID == uuid.Nil {
		t.Error("Expected ID to be generated")
	}

	existing := uuid.Must(uuid.NewV4())
	user2 := models.User{ID: existing}
	_ = user2.BeforeCreate(nil)
	if user2.ID != existing {
		t.Errorf("Expected ID %s to be kept, got %s", existing, user2.ID)
	}
}

func TestUser_PublicHidesSecrets(t *testing.T) {
	user := models.User{
		ID:        uuid.Must(uuid.NewV4()),
		Email:     "a@example.com",
		Password:  "hash",
		AvatarKey: "avatars/x.png",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}

	profile := user.Public()
	if profile.Email != user.Email {
		t.Errorf("Expected email '%s', got '%s'", user.Email, profile.Email)
	}
	if profile.AvatarURL != "" {
		t.Errorf("Expected no avatar url before resolution, got '%s'", profile.AvatarURL)
	}
	if user.FullName() != "Ada Lovelace" {
		t.Errorf("Expected full name 'Ada Lovelace', got '%s'", user.FullName())
	}
}

func TestPublicProfile_SummaryDropsContactDetails(t *testing.T) {
	profile := models.PublicProfile{
		ID:         uuid.Must(uuid.NewV4()),
		RegisterID: "REG-ABCD1234",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "a@example.com",
		Phone:      "555-0100",
		AvatarURL:  "https://cdn.example.com/a.png",
	}

	summaries := models.Summaries([]models.PublicProfile{profile})
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}
	got := summaries[0]
	if got.ID != profile.ID || got.RegisterID != profile.RegisterID || got.AvatarURL != profile.AvatarURL {
		t.Errorf("Unexpected summary %+v", got)
	}

	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if strings.Contains(string(raw), "email") || strings.Contains(string(raw), "555-0100") {
		t.Errorf("Expected summary without contact details, got %s", raw)
	}
}

func TestTask_Defaults(t *testing.T) {
	task := models.Task{Title: "Write docs"}
	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate returned error: %v", err)
	}
	if task.Status != models.TaskPending {
		t.Errorf("Expected status 'pending', got '%s'", task.Status)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Expected priority 'medium', got '%s'", task.Priority)
	}
	if !task.IsPersonal() {
		t.Error("Expected task without group to be personal")
	}

	gid := uuid.Must(uuid.NewV4())
	task.GroupID = &gid
	if task.IsPersonal() {
		t.Error("Expected task with group to be a team task")
	}
}

func TestFriendRequestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to models.FriendRequestStatus
		want     bool
	}{
		{models.FriendRequestPending, models.FriendRequestAccepted, true},
		{models.FriendRequestPending, models.FriendRequestRejected, true},
		{models.FriendRequestAccepted, models.FriendRequestRejected, false},
		{models.FriendRequestRejected, models.FriendRequestAccepted, false},
		{models.FriendRequestPending, models.FriendRequestPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}

	if models.FriendRequestStatus("maybe").Valid() {
		t.Error("Expected unknown status to be invalid")
	}
}

func TestJoinRequest_IsInvitation(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	user := uuid.Must(uuid.NewV4())

	self := models.JoinRequest{UserID: user, InitiatedBy: user}
	if self.IsInvitation() {
		t.Error("Expected self-initiated request not to be an invitation")
	}

	invite := models.JoinRequest{UserID: user, InitiatedBy: owner}
	if !invite.IsInvitation() {
		t.Error("Expected owner-initiated request to be an invitation")
	}

	if !models.JoinRequestAccepted.Valid() || models.JoinRequestStatus("").Valid() {
		t.Error("Unexpected validity for join request statuses")
	}
}

func TestParseDecision(t *testing.T) {
	cases := map[string]models.Decision{
		"accept":   models.DecisionAccept,
		"accepted": models.DecisionAccept,
		"reject":   models.DecisionReject,
		"rejected": models.DecisionReject,
	}
	for in, want := range cases {
		got, ok := models.ParseDecision(in)
		if !ok || got != want {
			t.Errorf("ParseDecision(%q) = %q, %v", in, got, ok)
		}
	}

	if _, ok := models.ParseDecision("maybe"); ok {
		t.Error("Expected 'maybe' to be rejected")
	}
}

func TestTaskStatusAndPriority_Valid(t *testing.T) {
	for _, s := range []models.TaskStatus{models.TaskPending, models.TaskInProgress, models.TaskCompleted} {
		if !s.Valid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	if models.TaskStatus("archived").Valid() {
		t.Error("Expected 'archived' to be invalid")
	}
	if models.TaskPriority("urgent").Valid() {
		t.Error("Expected 'urgent' to be invalid")
	}
}

func TestTaskStatus_CompletedCanReopen(t *testing.T) {
	if !models.TaskCompleted.CanTransitionTo(models.TaskPending) {
		t.Error("Expected completed task to be reopenable")
	}
	if models.TaskPending.CanTransitionTo(models.TaskStatus("archived")) {
		t.Error("Expected transition to unknown status to be rejected")
	}
}

package models

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether a request in state s may move to next.
// Accepted and rejected are terminal.
func (s FriendRequestStatus) CanTransitionTo(next FriendRequestStatus) bool {
	return s == FriendRequestPending && (next == FriendRequestAccepted || next == FriendRequestRejected)
}

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestAccepted JoinRequestStatus = "accepted"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

func (s JoinRequestStatus) Valid() bool {
	switch s {
	case JoinRequestPending, JoinRequestAccepted, JoinRequestRejected:
		return true
	}
	return false
}

func (s JoinRequestStatus) CanTransitionTo(next JoinRequestStatus) bool {
	return s == JoinRequestPending && (next == JoinRequestAccepted || next == JoinRequestRejected)
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// CanTransitionTo allows any move between known states; completed tasks
// may be reopened.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return s.Valid() && next.Valid()
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Decision is the answer a recipient gives to a pending request.
type Decision string

const (
	DecisionAccept Decision = "accepted"
	DecisionReject Decision = "rejected"
)

// ParseDecision accepts both the verb and the resulting status so clients
// may send either "accept" or "accepted".
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "accept", "accepted":
		return DecisionAccept, true
	case "reject", "rejected":
		return DecisionReject, true
	}
	return "", false
}

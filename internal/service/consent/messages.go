package consent

// Request and response bodies of the Consent API. On the wire each one is a
// google.protobuf.Struct with these JSON field names. User, match and
// request ids travel as decimal strings so that no uint64 is squeezed
// through a JSON number.

type ExpressInterestRequest struct {
	FromUserID uint64 `json:"from_user_id,string" validate:"required"`
	ToUserID   uint64 `json:"to_user_id,string" validate:"required"`
	Kind       string `json:"kind" validate:"required"`
}

type ExpressInterestResponse struct {
	SignalID  uint64 `json:"signal_id,string"`
	Mutual    bool   `json:"mutual"`
	Result    string `json:"result"`
	MatchID   uint64 `json:"match_id,omitempty,string"`
	RequestID uint64 `json:"request_id,omitempty,string"`
	Duplicate bool   `json:"duplicate"`
}

type RecordSignalRequest struct {
	FromUserID uint64 `json:"from_user_id,string" validate:"required"`
	ToUserID   uint64 `json:"to_user_id,string" validate:"required"`
	Kind       string `json:"kind" validate:"required"`
}

type RecordSignalResponse struct {
	SignalID uint64 `json:"signal_id,string"`
}

type AuthorizeRequest struct {
	UserID uint64 `json:"user_id,string" validate:"required"`
	Kind   string `json:"kind" validate:"required"`
}

type AuthorizeResponse struct {
	Tier    string `json:"tier"`
	Allowed bool   `json:"allowed"`
}

type CheckMutualRequest struct {
	FromUserID uint64 `json:"from_user_id,string" validate:"required"`
	ToUserID   uint64 `json:"to_user_id,string" validate:"required,nefield=FromUserID"`
}

type CheckMutualResponse struct {
	Mutual bool `json:"mutual"`
}

type ResolveRequest struct {
	RequesterID uint64 `json:"requester_id,string" validate:"required"`
	RecipientID uint64 `json:"recipient_id,string" validate:"required,nefield=RequesterID"`
}

type ResolveResponse struct {
	Kind      string `json:"kind"`
	RequestID uint64 `json:"request_id,omitempty,string"`
	WardID    uint64 `json:"ward_id,omitempty,string"`
	Duplicate bool   `json:"duplicate"`
}

type DecideRequest struct {
	RequestID uint64 `json:"request_id,string" validate:"required"`
	Approved  bool   `json:"approved"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type DecideResponse struct {
	Introduction Introduction `json:"introduction"`
	MatchID      uint64       `json:"match_id,omitempty,string"`
}

type MaterializeRequest struct {
	UserA uint64 `json:"user_a,string" validate:"required"`
	UserB uint64 `json:"user_b,string" validate:"required"`
}

type MaterializeResponse struct {
	MatchID   uint64 `json:"match_id,string"`
	UserA     uint64 `json:"user_a,string"`
	UserB     uint64 `json:"user_b,string"`
	Duplicate bool   `json:"duplicate"`
}

type GetQuotaRequest struct {
	UserID uint64 `json:"user_id,string" validate:"required"`
}

type GetQuotaResponse struct {
	Tier      string `json:"tier"`
	Used      int64  `json:"used"`
	Limit     int    `json:"limit"`
	Unlimited bool   `json:"unlimited"`
	Remaining int64  `json:"remaining"`
}

type ListMatchesRequest struct {
	UserID          uint64  `json:"user_id,string" validate:"required"`
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit" validate:"gte=0,lte=100"`
}

type MatchItem struct {
	MatchID       uint64 `json:"match_id,string"`
	OtherUserID   uint64 `json:"other_user_id,string"`
	UnixTimestamp int64  `json:"unix_timestamp"`
}

type ListMatchesResponse struct {
	Matches             []MatchItem `json:"matches"`
	NextPaginationToken *string     `json:"next_pagination_token,omitempty"`
}

type ListIntroductionsRequest struct {
	GuardianID uint64 `json:"guardian_id,omitempty,string" validate:"required_without=UserID"`
	UserID     uint64 `json:"user_id,omitempty,string"`
	Status     string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	Limit      int    `json:"limit" validate:"gte=0,lte=100"`
}

type Introduction struct {
	RequestID        uint64 `json:"request_id,string"`
	RequesterID      uint64 `json:"requester_id,string"`
	RecipientID      uint64 `json:"recipient_id,string"`
	Status           string `json:"status"`
	GuardianApproved *bool  `json:"guardian_approved,omitempty"`
	GuardianNotes    string `json:"guardian_notes,omitempty"`
	CreatedUnix      int64  `json:"created_unix"`
	DecidedUnix      int64  `json:"decided_unix,omitempty"`
}

type ListIntroductionsResponse struct {
	Introductions []Introduction `json:"introductions"`
}

type EnqueueNotificationRequest struct {
	RecipientUserID uint64         `json:"recipient_user_id,string" validate:"required"`
	Type            string         `json:"type" validate:"required,oneof=match message introduction"`
	SourceActorName string         `json:"source_actor_name" validate:"required,max=128"`
	Preview         string         `json:"preview" validate:"max=512"`
	Extra           map[string]any `json:"extra,omitempty"`
}

type EnqueueNotificationResponse struct {
	EventID uint64 `json:"event_id,string"`
}

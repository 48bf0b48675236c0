// Package domain defines the persistence models for portal users, AI
// conversations, and student↔consultant support threads. These types are
// mapped with GORM and form the core data layer of the support service.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Portal roles. Every authenticated actor carries exactly one of these for
// the lifetime of a session.
const (
	RoleAdmin            = "ADMIN"
	RoleSubAdmin         = "SUB_ADMIN"
	RoleStudent          = "STUDENT"
	RoleStudentOrganizer = "STUDENT_ORGANIZER"
	RoleSocietyHead      = "SOCIETY_HEAD"
	RoleSocialMedia      = "SOCIAL_MEDIA"
	RoleConsultant       = "CONSULTANT"
)

// ValidRole reports whether r is one of the portal roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleSubAdmin, RoleStudent, RoleStudentOrganizer,
		RoleSocietyHead, RoleSocialMedia, RoleConsultant:
		return true
	}
	return false
}

// User is the authenticated identity driving a portal session.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique login identifier.
//   - PasswordHash: bcrypt hash; never serialized.
//   - Role: one of the Role* constants (enforced at the service layer).
//   - IsApproved / IsBlocked: account gates checked at login and on every
//     token verification.
type User struct {
	ID           string         `json:"id"         gorm:"type:char(36);primaryKey"`
	FullName     string         `json:"fullName"   gorm:"type:varchar(120);not null"`
	Email        string         `json:"email"      gorm:"type:varchar(120);not null;uniqueIndex"`
	PasswordHash string         `json:"-"          gorm:"type:varchar(255);not null"`
	Role         string         `json:"role"       gorm:"type:varchar(32);not null;default:'STUDENT';index"`
	IsApproved   bool           `json:"isApproved" gorm:"not null;default:false"`
	IsBlocked    bool           `json:"isBlocked"  gorm:"not null;default:false"`
	Department   string         `json:"department,omitempty" gorm:"type:varchar(120)"`
	Semester     string         `json:"semester,omitempty"   gorm:"type:varchar(50)"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// RevokedToken records a JWT ID (jti) that must no longer be accepted, e.g.
// after logout. Rows expire together with the token they revoke and are
// swept opportunistically.
type RevokedToken struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	JTI       string    `json:"jti"       gorm:"type:char(36);not null;uniqueIndex"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the database table name for RevokedToken.
func (RevokedToken) TableName() string { return "revoked_tokens" }

// AiConversation is a single logical thread of prompt/reply pairs between one
// user and the assistant. Conversations are created lazily on the first send
// and titled from the first prompt.
type AiConversation struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"userId"    gorm:"type:char(36);not null;index:idx_user_convs"`
	Title     string         `json:"title"     gorm:"type:varchar(255);not null;default:'New conversation'"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for AiConversation.
func (AiConversation) TableName() string { return "ai_conversations" }

// Senders for AiMessage rows. A prompt/reply pair is stored as two adjacent
// rows sharing a conversation; the pair is addressed by the prompt row's ID.
const (
	AiSenderUser      = "user"
	AiSenderAssistant = "ai"
)

// AiMessage is a single utterance within an AI conversation, authored either
// by the user or by the assistant.
type AiMessage struct {
	ID             string         `json:"id"             gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversationId" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Sender         string         `json:"sender"         gorm:"type:varchar(16);not null;check:sender IN ('user','ai')"`
	Text           string         `json:"text"           gorm:"type:text;not null"`
	CreatedAt      time.Time      `json:"createdAt"      gorm:"index:idx_conv_msgs,priority:2"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Conversation is the parent; messages are cascade-deleted with it.
	Conversation AiConversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AiMessage.
func (AiMessage) TableName() string { return "ai_messages" }

// AiPair is the read model for one question/answer unit: the user prompt and
// the assistant reply that immediately follows it. The pair ID is the prompt
// message ID. Reply fields are nil while a reply is still pending or when the
// prompt never received one.
type AiPair struct {
	ID              string     `json:"id"`
	Prompt          string     `json:"prompt"`
	Reply           *string    `json:"reply"`
	PromptCreatedAt time.Time  `json:"promptCreatedAt"`
	ReplyCreatedAt  *time.Time `json:"replyCreatedAt"`
}

// AiDateBlock is the derived per-calendar-day aggregate of a user's AI
// history. It is recomputed on every fetch, never stored.
type AiDateBlock struct {
	Date    string    `json:"date"` // YYYY-MM-DD
	Count   int       `json:"count"`
	FirstAt time.Time `json:"firstAt"`
	LastAt  time.Time `json:"lastAt"`
	Snippet string    `json:"snippet"`
}

// SupportThread is the persistent one-to-one channel between a student-like
// user and a consultant. At most one thread exists per (student, consultant)
// pair; creation is idempotent. Threads are never deleted.
type SupportThread struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	StudentID    string    `json:"studentId"    gorm:"type:char(36);not null;uniqueIndex:ux_thread_pair,priority:1"`
	ConsultantID string    `json:"consultantId" gorm:"type:char(36);not null;uniqueIndex:ux_thread_pair,priority:2;index"`
	CreatedAt    time.Time `json:"createdAt"`

	Student    *User `json:"student,omitempty"    gorm:"foreignKey:StudentID;references:ID"`
	Consultant *User `json:"consultant,omitempty" gorm:"foreignKey:ConsultantID;references:ID"`

	// LastMessage is populated on consultant listings only.
	LastMessage *SupportMessage `json:"lastMessage,omitempty" gorm:"-"`
}

// TableName returns the database table name for SupportThread.
func (SupportThread) TableName() string { return "support_threads" }

// SupportMessage is one immutable utterance within a support thread. Whether
// a message is "mine" is derived by the viewer from SenderID, never stored.
type SupportMessage struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ThreadID   string    `json:"threadId"   gorm:"type:char(36);not null;index:idx_thread_msgs,priority:1"`
	SenderID   string    `json:"senderId"   gorm:"type:char(36);not null"`
	SenderName string    `json:"senderName" gorm:"type:varchar(120)"`
	Text       string    `json:"text"       gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"createdAt"  gorm:"index:idx_thread_msgs,priority:2"`

	Thread SupportThread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SupportMessage.
func (SupportMessage) TableName() string { return "support_messages" }

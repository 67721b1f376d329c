package model

import "time"

// FriendRequest is a pending incoming friendship.
type FriendRequest struct {
	ID            string    `json:"id"`
	RequesterID   string    `json:"requesterId"`
	RequesterName string    `json:"requesterName"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Post is an entry in the news feed.
type Post struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"authorId"`
	Content       string    `json:"content"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
}

// Comment is a reply on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Story is a short-lived post shown above the feed.
type Story struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Text       string    `json:"text,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	ViewsCount int       `json:"viewsCount"`
}

// LikeStatus is the like state of a post for the current user.
type LikeStatus struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

// Message is a direct message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
}

// Conversation summarizes the latest exchange with one partner.
type Conversation struct {
	PartnerID       string    `json:"partnerId"`
	PartnerName     string    `json:"partnerName"`
	PartnerPic      string    `json:"partnerPic,omitempty"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	FromMe          bool      `json:"isFromMe"`
	Unread          bool      `json:"unread"`
}

// Group is a community users can join.
type Group struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	CreatorID     string    `json:"creatorId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	MembersCount  int       `json:"membersCount"`
	Public        bool      `json:"public"`
}

// RSVP statuses accepted by the events endpoint.
const (
	RSVPGoing      = "GOING"
	RSVPInterested = "INTERESTED"
)

// Event is a scheduled gathering.
type Event struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Location        string    `json:"location,omitempty"`
	CoverImageURL   string    `json:"coverImageUrl,omitempty"`
	CreatorID       string    `json:"creatorId,omitempty"`
	EventDate       time.Time `json:"eventDate"`
	CreatedAt       time.Time `json:"createdAt"`
	AttendeesCount  int       `json:"attendeesCount"`
	InterestedCount int       `json:"interestedCount"`
}

// Media is an uploaded file stored by the media service.
type Media struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	FileName         string `json:"fileName"`
	OriginalFileName string `json:"originalFileName"`
	ContentType      string `json:"contentType"`
	Size             int64  `json:"size"`
	URL              string `json:"url"`
	CreatedAt        string `json:"createdAt,omitempty"`
}

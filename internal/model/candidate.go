package model

import "time"

// Candidate represents a candidate sitting the certification exam.
type Candidate struct {
	ID              int       `json:"id"`
	CandidateNumber string    `json:"candidate_number"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CandidateLoginRequest is the payload for candidate authentication.
type CandidateLoginRequest struct {
	CandidateNumber string `json:"candidate_number" binding:"required,min=4,max=20"`
	Password        string `json:"password" binding:"required,min=4,max=128"`
}

// CandidateLoginResponse is returned after successful candidate login.
type CandidateLoginResponse struct {
	Token     string    `json:"token"`
	Candidate Candidate `json:"candidate"`
}

// CreateCandidateRequest is the payload for registering a new candidate.
type CreateCandidateRequest struct {
	CandidateNumber string `json:"candidate_number" binding:"required,min=4,max=20"`
	Name            string `json:"name" binding:"required,min=2,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6,max=128"`
}

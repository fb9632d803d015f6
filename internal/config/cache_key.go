package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's login session
func (r *CacheKeyStruct) CandidateSessionKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// SessionStartKey returns the cache key for a candidate's exam session start anchor
func (r *CacheKeyStruct) SessionStartKey(examID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:exam:%s:session_start", candidateID, examID)
}

// CandidateAnswersKey returns the cache key for a candidate's in-progress answers
func (r *CacheKeyStruct) CandidateAnswersKey(examID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:exam:%s:answers", candidateID, examID)
}

// CandidateFlagsKey returns the cache key for a candidate's flagged question set
func (r *CacheKeyStruct) CandidateFlagsKey(examID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:exam:%s:flags", candidateID, examID)
}

// CandidateQuestionOrderKey returns the cache key for a candidate's question order
func (r *CacheKeyStruct) CandidateQuestionOrderKey(examID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:exam:%s:question_order", candidateID, examID)
}

// CandidateActiveExamKey returns the cache key for a candidate's currently active exam
func (r *CacheKeyStruct) CandidateActiveExamKey(candidateID int) string {
	return fmt.Sprintf("candidate:%d:active_exam", candidateID)
}

// ExamPayloadKey returns the cache key for an exam's payload
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamDurationKey returns the cache key for an exam's completion time in seconds
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// ExamPauseConfigKey returns the cache key for an exam's pause configuration
func (r *CacheKeyStruct) ExamPauseConfigKey(examID string) string {
	return fmt.Sprintf("exam:%s:pause_config", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()

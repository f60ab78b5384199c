package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyTask is returned when a task payload carries no domain.
var ErrEmptyTask = errors.New("task has no domain")

// Task is the queue payload asking a worker to crawl one domain.
type Task struct {
	// Domain is the lowercase domain name to crawl.
	Domain string `json:"domain"`

	// Attempt is the delivery attempt, starting at 1.
	// It is incremented every time the task is retried.
	Attempt int `json:"attempt"`

	// EnqueuedAt is the time the task was first submitted.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTask creates a first-attempt task for domain.
func NewTask(domain string, now time.Time) *Task {
	return &Task{
		Domain:     NormalizeName(domain),
		Attempt:    1,
		EnqueuedAt: now.UTC(),
	}
}

// Encode serializes the task for the broker.
func (t *Task) Encode() (string, error) {
	if t.Domain == "" {
		return "", ErrEmptyTask
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}
	return string(data), nil
}

// DecodeTask parses a broker payload.
func DecodeTask(payload string) (*Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	if t.Domain == "" {
		return nil, ErrEmptyTask
	}
	if t.Attempt < 1 {
		t.Attempt = 1
	}
	return &t, nil
}

// Next returns a copy of the task for the following delivery attempt.
func (t *Task) Next() *Task {
	next := *t
	next.Attempt++
	return &next
}

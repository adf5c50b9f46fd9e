package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"luckydraw/internal/store"
)

const (
	participantPrefix  = "participant:"
	clientIDPrefix     = "clientId:"
	roundPrefix        = "round:"
	adminSessionPrefix = "admin:session:"
	activityStateKey   = "activity:state"
	activityConfigKey  = "activity:config"
	nextPIDKey         = "next:pid"
)

func participantKey(pid int) string      { return participantPrefix + strconv.Itoa(pid) }
func clientIDKey(clientID string) string { return clientIDPrefix + clientID }
func roundKey(roundID string) string     { return roundPrefix + roundID }
func sessionKey(token string) string     { return adminSessionPrefix + token }

// getJSON decodes the value at key into v and returns the raw bytes read.
func getJSON(ctx context.Context, s store.Store, key string, v any) ([]byte, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return raw, nil
}

func setJSON(ctx context.Context, s store.Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, ttl)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JackieWYB/majiang-sub001/common/cache"
	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/session"
)

var ErrNotFound = errors.New("store: key not found")

// 键格式，所有游戏态数据共用一个 Redis 实例
func gameStateKey(roomID string) string      { return "game:state:" + roomID }
func sessionUserKey(userID string) string    { return "session:user:" + userID }
func sessionInfoKey(sessionID string) string { return "session:info:" + sessionID }
func roomPlayersKey(roomID string) string    { return "room:players:" + roomID }

// Store Redis 权威存储 + ristretto 软副本
// 实现 engine.StateStore 与 session.Store；写序列化由引擎的房间临界区保证
type Store struct {
	rdb   redis.Cmdable
	local *cache.GeneralCache // 可为 nil，仅作读加速，Redis 始终是权威
	ttl   time.Duration       // 滑动 TTL，每次写入与 RefreshTTL 时重置
}

func New(rdb redis.Cmdable, local *cache.GeneralCache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, local: local, ttl: ttl}
}

// Save 落盘对局状态并刷新滑动 TTL
func (s *Store) Save(ctx context.Context, st *engine.GameState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("序列化对局状态失败: %w", err)
	}
	key := gameStateKey(st.RoomID)
	if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
		return err
	}
	if s.local != nil {
		s.local.SetWithTTL(key, b, s.ttl)
	}
	return nil
}

// Load 读取对局状态，本地副本命中则省去一次网络往返
func (s *Store) Load(ctx context.Context, roomID string) (*engine.GameState, error) {
	key := gameStateKey(roomID)
	if s.local != nil {
		if v, ok := s.local.Get(key); ok {
			if b, ok := v.([]byte); ok {
				var st engine.GameState
				if err := json.Unmarshal(b, &st); err == nil {
					return &st, nil
				}
			}
		}
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st engine.GameState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("反序列化对局状态失败: %w", err)
	}
	if s.local != nil {
		s.local.SetWithTTL(key, b, s.ttl)
	}
	return &st, nil
}

func (s *Store) Exists(ctx context.Context, roomID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, gameStateKey(roomID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, roomID string) error {
	key := gameStateKey(roomID)
	if s.local != nil {
		s.local.Delete(key)
	}
	return s.rdb.Del(ctx, key).Err()
}

func (s *Store) RefreshTTL(ctx context.Context, roomID string) error {
	return s.rdb.Expire(ctx, gameStateKey(roomID), s.ttl).Err()
}

// SaveSession 会话双向映射：user → sessionId、sessionId → Info
func (s *Store) SaveSession(ctx context.Context, info session.Info) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionUserKey(info.UserID), info.SessionID, s.ttl).Err(); err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionInfoKey(info.SessionID), b, s.ttl).Err()
}

func (s *Store) RemoveSession(ctx context.Context, sessionID string) error {
	info, err := s.SessionInfo(ctx, sessionID)
	if err == nil {
		if sid, err := s.SessionByUser(ctx, info.UserID); err == nil && sid == sessionID {
			if err := s.rdb.Del(ctx, sessionUserKey(info.UserID)).Err(); err != nil {
				return err
			}
		}
	}
	return s.rdb.Del(ctx, sessionInfoKey(sessionID)).Err()
}

func (s *Store) SessionByUser(ctx context.Context, userID string) (string, error) {
	sid, err := s.rdb.Get(ctx, sessionUserKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return sid, err
}

func (s *Store) SessionInfo(ctx context.Context, sessionID string) (session.Info, error) {
	b, err := s.rdb.Get(ctx, sessionInfoKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Info{}, ErrNotFound
	}
	if err != nil {
		return session.Info{}, err
	}
	var info session.Info
	if err := json.Unmarshal(b, &info); err != nil {
		return session.Info{}, fmt.Errorf("反序列化会话失败: %w", err)
	}
	return info, nil
}

func (s *Store) UpdateHeartbeat(ctx context.Context, sessionID string) error {
	info, err := s.SessionInfo(ctx, sessionID)
	if err != nil {
		return err
	}
	info.LastHeartbeatAt = time.Now()
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionInfoKey(sessionID), b, s.ttl).Err()
}

// AddRoomMember 维护房间成员集合，出站广播按它扇出
func (s *Store) AddRoomMember(ctx context.Context, roomID, userID string) error {
	if err := s.rdb.SAdd(ctx, roomPlayersKey(roomID), userID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, roomPlayersKey(roomID), s.ttl).Err()
}

func (s *Store) RemoveRoomMember(ctx context.Context, roomID, userID string) error {
	return s.rdb.SRem(ctx, roomPlayersKey(roomID), userID).Err()
}

func (s *Store) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	return s.rdb.SMembers(ctx, roomPlayersKey(roomID)).Result()
}

func (s *Store) ClearRoomMembers(ctx context.Context, roomID string) error {
	return s.rdb.Del(ctx, roomPlayersKey(roomID)).Err()
}

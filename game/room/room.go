package room

import (
	"time"

	"github.com/JackieWYB/majiang-sub001/game/rules"
)

// Status 房间状态
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusReady      Status = "READY"
	StatusPlaying    Status = "PLAYING"
	StatusSettlement Status = "SETTLEMENT"
	StatusDissolved  Status = "DISSOLVED"
)

// Seat 房间内一个座位
type Seat struct {
	UserID   string    `json:"userId"`
	Index    int       `json:"index"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Room 一个对局房间，房主建房、座位满员且全部准备后方可开局
// 字段由 Manager 在其锁内独占修改
type Room struct {
	ID             string           `json:"id"`
	OwnerID        string           `json:"ownerId"`
	RuleID         string           `json:"ruleId"`
	Config         rules.RoomConfig `json:"config"`
	Status         Status           `json:"status"`
	Seats          []*Seat          `json:"seats"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
}

// seatOf 按用户找座位
func (r *Room) seatOf(userID string) *Seat {
	for _, s := range r.Seats {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

// lowestFreeIndex 最小空闲座位号，满员返回 -1
func (r *Room) lowestFreeIndex() int {
	for i := 0; i < r.Config.Players; i++ {
		taken := false
		for _, s := range r.Seats {
			if s.Index == i {
				taken = true
				break
			}
		}
		if !taken {
			return i
		}
	}
	return -1
}

// allReady 满员且全部准备
func (r *Room) allReady() bool {
	if len(r.Seats) != r.Config.Players {
		return false
	}
	for _, s := range r.Seats {
		if !s.Ready {
			return false
		}
	}
	return true
}

// Members 座位上的用户，按座位号升序
func (r *Room) Members() []string {
	out := make([]string, 0, len(r.Seats))
	for i := 0; i < r.Config.Players; i++ {
		for _, s := range r.Seats {
			if s.Index == i {
				out = append(out, s.UserID)
			}
		}
	}
	return out
}

package archive

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JackieWYB/majiang-sub001/common/database"
	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/rules"
)

const gameRecordsCollection = "game_records"

// PlayerRecord 归档中的单个玩家
type PlayerRecord struct {
	UserID   string `bson:"user_id" json:"userId"`
	Seat     int    `bson:"seat" json:"seat"`
	Dealer   bool   `bson:"dealer" json:"dealer"`
	Score    int    `bson:"score" json:"score"`
	Delta    int    `bson:"delta" json:"delta"`
	Winner   bool   `bson:"winner" json:"winner"`
	Fan      int    `bson:"fan,omitempty" json:"fan,omitempty"`
	HandType string `bson:"hand_type,omitempty" json:"handType,omitempty"`
}

// ActionEntry 动作流水条目
type ActionEntry struct {
	Seq    int       `bson:"seq" json:"seq"`
	UserID string    `bson:"user_id" json:"userId"`
	Kind   string    `bson:"kind" json:"kind"`
	Tile   string    `bson:"tile,omitempty" json:"tile,omitempty"`
	At     time.Time `bson:"at" json:"at"`
}

// GameRecord 一局对局的归档文档
type GameRecord struct {
	GameID     string                  `bson:"_id" json:"gameId"`
	RoomID     string                  `bson:"room_id" json:"roomId"`
	Round      int                     `bson:"round" json:"round"`
	Players    []PlayerRecord          `bson:"players" json:"players"`
	Actions    []ActionEntry           `bson:"actions" json:"actions"`
	Settlement *rules.SettlementResult `bson:"settlement" json:"settlement"`
	StartedAt  time.Time               `bson:"started_at" json:"startedAt"`
	EndedAt    time.Time               `bson:"ended_at" json:"endedAt"`
	CreatedAt  time.Time               `bson:"created_at" json:"createdAt"`
}

// BuildRecord 从终局状态构建归档文档，调用发生在房间临界区内，只读不改
func BuildRecord(st *engine.GameState) *GameRecord {
	rec := &GameRecord{
		GameID:     st.GameID,
		RoomID:     st.RoomID,
		Round:      st.Round,
		Settlement: st.Settlement,
		StartedAt:  st.GameStartedAt,
		EndedAt:    st.GameEndedAt,
		CreatedAt:  time.Now(),
	}
	winners := make(map[string]rules.PlayerResult)
	if st.Settlement != nil {
		for _, pr := range st.Settlement.PlayerResults {
			if pr.IsWinner {
				winners[pr.UserID] = pr
			}
		}
	}
	for _, p := range st.Players {
		pr := PlayerRecord{
			UserID: p.UserID,
			Seat:   p.Seat,
			Dealer: p.Dealer,
			Score:  p.Score,
		}
		if st.Settlement != nil {
			pr.Delta = st.Settlement.FinalScores[p.UserID]
		}
		if w, ok := winners[p.UserID]; ok {
			pr.Winner = true
			pr.Fan = w.Fan
			if len(w.HandTypes) > 0 {
				pr.HandType = w.HandTypes[0]
			}
		}
		rec.Players = append(rec.Players, pr)
	}
	for _, a := range st.Actions {
		entry := ActionEntry{
			Seq:    a.Seq,
			UserID: a.UserID,
			Kind:   string(a.Action.Kind),
			At:     a.At,
		}
		if a.Action.Kind != engine.ActPass {
			entry.Tile = a.Action.Tile.String()
		}
		rec.Actions = append(rec.Actions, entry)
	}
	return rec
}

// Archiver 结算归档器：单工作协程异步落 Mongo，不阻塞房间临界区
type Archiver struct {
	mongo *database.MongoManager
	jobs  chan *GameRecord
	wg    sync.WaitGroup
	once  sync.Once
}

func NewArchiver(mongo *database.MongoManager, queueDepth int) *Archiver {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	a := &Archiver{
		mongo: mongo,
		jobs:  make(chan *GameRecord, queueDepth),
	}
	a.wg.Add(1)
	go a.worker()
	return a
}

// OnGameEnd 引擎结算回调，构建文档后立即返回
func (a *Archiver) OnGameEnd(st *engine.GameState) {
	rec := BuildRecord(st)
	select {
	case a.jobs <- rec:
	default:
		log.Warn("归档队列已满, 丢弃对局 %s", rec.GameID)
	}
}

// Close 停止接收并等待落库完成
func (a *Archiver) Close() {
	a.once.Do(func() {
		close(a.jobs)
	})
	a.wg.Wait()
}

func (a *Archiver) worker() {
	defer a.wg.Done()
	for rec := range a.jobs {
		if err := a.save(rec); err != nil {
			log.Error("对局 %s 归档失败: %v", rec.GameID, err)
			continue
		}
		log.Info("对局 %s 已归档, 房间 %s 第 %d 局", rec.GameID, rec.RoomID, rec.Round)
	}
}

func (a *Archiver) save(rec *GameRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.mongo.Db.Collection(gameRecordsCollection).InsertOne(ctx, rec)
	return err
}

// RecentByRoom 按房间查最近归档，战绩查询用
func (a *Archiver) RecentByRoom(ctx context.Context, roomID string, limit int) ([]*GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := a.mongo.Db.Collection(gameRecordsCollection).Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*GameRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

package model

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/domumdigital/OneHundred/common"
	"github.com/jmoiron/sqlx"
)

func inboxTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	db := common.InitDB(dsn, 1, 2)
	ddl := `CREATE TABLE IF NOT EXISTS inbox (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		message_id VARCHAR(64) NOT NULL,
		topic VARCHAR(64) NOT NULL,
		payload TEXT NOT NULL,
		processed_at BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_message_topic (message_id, topic)
	)`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("create inbox table: %v", err)
	}
	return db
}

// 重投消息入库去重后必须能区分“已处理完成”与“处理中途失败”：
// 前者直接确认，后者需要重走处理
func TestInboxRedeliveryLifecycle(t *testing.T) {
	db := inboxTestDB(t)
	ctx := context.Background()

	id := fmt.Sprintf("it-msg-%d", time.Now().UnixNano())
	topic := "oracle-replies"

	first, err := UpsertInbox(ctx, db, id, topic, `{"request_id":"r1","random_value":"41"}`)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !first {
		t.Fatalf("first upsert must report first=true")
	}

	// 重投：非首次入库，但尚未处理完成
	first, err = UpsertInbox(ctx, db, id, topic, `{"request_id":"r1","random_value":"41"}`)
	if err != nil {
		t.Fatalf("redelivery upsert: %v", err)
	}
	if first {
		t.Fatalf("redelivery must report first=false")
	}
	done, err := InboxProcessed(ctx, db, id, topic)
	if err != nil {
		t.Fatalf("query processed: %v", err)
	}
	if done {
		t.Fatalf("message must not be processed before MarkInboxProcessed")
	}

	if err := MarkInboxProcessed(ctx, db, id, topic); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	done, err = InboxProcessed(ctx, db, id, topic)
	if err != nil {
		t.Fatalf("query processed: %v", err)
	}
	if !done {
		t.Fatalf("message must be processed after MarkInboxProcessed")
	}

	// 不存在的消息视为未处理
	done, err = InboxProcessed(ctx, db, id+"-missing", topic)
	if err != nil || done {
		t.Fatalf("missing message: done=%v err=%v, want false nil", done, err)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// LarkConfig holds the Lark bot credentials and the chat that receives
// workflow transition messages.
type LarkConfig struct {
	AppID         string
	AppSecret     string
	ReceiveChatID string
}

// LarkNotifier posts workflow transitions to a Lark chat via the bot
// messaging API.
type LarkNotifier struct {
	client *lark.Client
	chatID string
	logger *zap.Logger
}

// NewLarkNotifier creates a Lark-backed notifier
func NewLarkNotifier(cfg LarkConfig, logger *zap.Logger) *LarkNotifier {
	return &LarkNotifier{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret),
		chatID: cfg.ReceiveChatID,
		logger: logger,
	}
}

func (n *LarkNotifier) Name() string { return "lark" }

// OnTransition sends a text message describing the state change.
func (n *LarkNotifier) OnTransition(ctx context.Context, t Transition) error {
	text := fmt.Sprintf("Expense workflow %s moved from %s to %s", t.WorkflowID, t.From, t.To)
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to build message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	n.logger.Debug("Transition message sent",
		zap.String("workflow_id", t.WorkflowID),
		zap.String("chat_id", n.chatID))
	return nil
}

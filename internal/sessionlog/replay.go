package sessionlog

import (
	"github.com/redcellhq/redcell/internal/message"
	"github.com/redcellhq/redcell/pkg/models"
)

// Replay converts a session log back into the event stream shape the
// live workflow emits, one message event per logged record, in order.
// IDs are re-derived deterministically, so replaying the same log twice
// yields identical events. tool_command records come back as tool
// messages whose raw Command is set; tool_output records as tool
// messages with output only, which keeps the record/event mapping 1:1
// in both directions.
func Replay(log *models.SessionLog) []models.Event {
	proc := message.NewProcessor()
	events := make([]models.Event, 0, len(log.Events))
	for _, ev := range log.Events {
		raw := replayMessage(ev)
		if raw == nil {
			continue
		}
		events = append(events, models.MessageEvent(proc.Process(raw)))
	}
	return events
}

func replayMessage(ev models.LoggedEvent) *models.Message {
	switch ev.EventType {
	case models.LoggedUserInput:
		return &models.Message{
			Role:      models.RoleUser,
			Content:   ev.Content,
			CreatedAt: ev.Timestamp,
		}
	case models.LoggedAgentResponse:
		var calls []models.ToolCall
		for _, name := range ev.ToolCalls {
			calls = append(calls, models.ToolCall{Name: name})
		}
		return &models.Message{
			Role:      models.RoleAssistant,
			AgentName: ev.AgentName,
			Content:   ev.Content,
			ToolCalls: calls,
			CreatedAt: ev.Timestamp,
		}
	case models.LoggedToolCommand:
		return &models.Message{
			Role:      models.RoleTool,
			ToolName:  ev.ToolName,
			Content:   ev.Content,
			Command:   ev.Content,
			CreatedAt: ev.Timestamp,
		}
	case models.LoggedToolOutput:
		return &models.Message{
			Role:      models.RoleTool,
			ToolName:  ev.ToolName,
			Content:   ev.Content,
			CreatedAt: ev.Timestamp,
		}
	default:
		return nil
	}
}

package http

import (
	"github.com/linkchat/linkchat-server/internal/chat"
	"github.com/linkchat/linkchat-server/internal/proto"
	"github.com/linkchat/linkchat-server/internal/store"
)

func toEventRoom(room *store.Room) proto.EventRoom {
	return proto.EventRoom{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.Unix(),
	}
}

func toEventMessage(msg *store.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:       msg.ID,
		Room:     msg.RoomID,
		Username: msg.Username,
		Content:  msg.Content,
		TS:       msg.CreatedAt.UnixMilli(),
	}
}

func historyOutbound(roomID string, messages []*store.Message) proto.Outbound {
	events := make([]proto.EventMessage, 0, len(messages))
	for _, msg := range messages {
		events = append(events, toEventMessage(msg))
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventHistory,
		Data:  proto.EventHistoryData{Room: roomID, Messages: events},
	}
}

func messageOutbound(msg *store.Message) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventMessageName,
		Data:  toEventMessage(msg),
	}
}

func errorOutbound(err error, roomID, content string) proto.Outbound {
	return proto.Outbound{
		Type: proto.OutboundTypeError,
		Error: &proto.Error{
			Code:    chat.CodeOf(err),
			Msg:     err.Error(),
			Room:    roomID,
			Content: content,
		},
	}
}

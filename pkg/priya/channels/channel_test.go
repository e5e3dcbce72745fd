package channels

import "testing"

func TestIncomingMessage_Ref(t *testing.T) {
	var nilMsg *IncomingMessage
	if _, ok := nilMsg.Ref(); ok {
		t.Error("nil message should have no ref")
	}
	if _, ok := (&IncomingMessage{Content: "hi"}).Ref(); ok {
		t.Error("text message should have no ref")
	}

	msg := &IncomingMessage{
		Type:    MessageImage,
		Content: "look",
		Media:   &MediaInfo{Type: MessageImage, FileID: "AgAD"},
	}
	ref, ok := msg.Ref()
	if !ok || ref.FileID != "AgAD" || ref.Type != MessageImage || ref.Caption != "look" {
		t.Errorf("Ref() = %+v, %v", ref, ok)
	}
}

package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CommandKind identifies a subscriber command.
type CommandKind int

const (
	// CommandNone is any message that carries no recognized command.
	// Such messages are ignored.
	CommandNone CommandKind = iota

	// CommandSubscribe replaces the subscriber's mask.
	CommandSubscribe
)

// Command is a parsed subscriber message.
type Command struct {
	Kind CommandKind
	Mask Mask
}

// SubscribeMessage builds the wire form of a subscribe command.
func SubscribeMessage(mask Mask) []byte {
	return []byte(fmt.Sprintf(`{"command":"subscribe","mask":%d}`, uint32(mask)))
}

// ParseCommand parses one inbound text message.
//
// Only {"command":"subscribe","mask":<integer>} is recognized. A missing
// "command" or "mask" field, or any other command name, yields CommandNone
// without error. Input that is not a JSON object, or whose fields have the
// wrong type, yields ErrMalformedCommand. The mask is reduced to 32 bits,
// so -1 selects every category.
func ParseCommand(data []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	rawCommand, ok := fields["command"]
	if !ok || isNull(rawCommand) {
		return Command{}, nil
	}

	var name string
	if err := json.Unmarshal(rawCommand, &name); err != nil {
		return Command{}, fmt.Errorf("%w: command: %v", ErrMalformedCommand, err)
	}
	if name != "subscribe" {
		return Command{}, nil
	}

	rawMask, ok := fields["mask"]
	if !ok || isNull(rawMask) {
		return Command{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(rawMask))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return Command{}, fmt.Errorf("%w: mask: %v", ErrMalformedCommand, err)
	}
	num, ok := value.(json.Number)
	if !ok {
		return Command{}, fmt.Errorf("%w: mask is not a number", ErrMalformedCommand)
	}
	v, err := num.Int64()
	if err != nil {
		return Command{}, fmt.Errorf("%w: mask: %v", ErrMalformedCommand, err)
	}

	return Command{Kind: CommandSubscribe, Mask: Mask(uint32(v))}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

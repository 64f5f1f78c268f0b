package chat

import "strings"

const (
	chatPrefix      = "chat:"
	messagesSuffix  = ":messages"
	orderSuffix     = ":order"
	readSuffix      = ":read"
	archiveSuffix   = ":archive"
	pairPrefix      = "chat:pair:"
	userPrefix      = "user:"
	userChatsSuffix = ":chats"
	previewSuffix   = ":chats:preview"
)

// MessagesPattern matches every message log key.
const MessagesPattern = chatPrefix + "*" + messagesSuffix

// OrderPattern matches every order index key.
const OrderPattern = chatPrefix + "*" + orderSuffix

// ArchiveMetaPattern matches every metadata copy.
const ArchiveMetaPattern = chatPrefix + "*" + archiveSuffix

func MetaKey(chatID string) string     { return chatPrefix + chatID }
func MessagesKey(chatID string) string { return chatPrefix + chatID + messagesSuffix }
func OrderKey(chatID string) string    { return chatPrefix + chatID + orderSuffix }
func ReadKey(chatID string) string     { return chatPrefix + chatID + readSuffix }

// ArchiveMetaKey holds a copy of the metadata that lives as long as the
// message log, so an expired chat is archived with its metadata.
func ArchiveMetaKey(chatID string) string { return chatPrefix + chatID + archiveSuffix }

func UserChatsKey(userID string) string {
	return userPrefix + userID + userChatsSuffix
}
func previewKey(userID string) string { return userPrefix + userID + previewSuffix }

// PairKey is the same for (a, b) and (b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return pairPrefix + a + ":" + b
}

// ChatIDFromKey extracts the chat id from a messages, order or metadata copy
// key.
func ChatIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, chatPrefix) || strings.HasPrefix(key, pairPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, chatPrefix)
	for _, suffix := range []string{messagesSuffix, orderSuffix, archiveSuffix} {
		if strings.HasSuffix(rest, suffix) {
			id := strings.TrimSuffix(rest, suffix)
			return id, id != ""
		}
	}
	return "", false
}

// HotKeys lists every per-chat key that carries a rolling TTL. The first is
// the metadata; the others outlive it by the archive grace.
func HotKeys(chatID string) []string {
	return []string{MetaKey(chatID), MessagesKey(chatID), OrderKey(chatID), ReadKey(chatID), ArchiveMetaKey(chatID)}
}

// LogKeys lists the keys the archival sweep reads and then removes.
func LogKeys(chatID string) []string {
	return []string{MessagesKey(chatID), OrderKey(chatID), ReadKey(chatID), ArchiveMetaKey(chatID)}
}

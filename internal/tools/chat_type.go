package tools

import "strings"

// ChatType selects the tool set and system prompt of a session.
type ChatType string

const (
	ChatTypeAsk    ChatType = "ask"
	ChatTypeCreate ChatType = "create"
	ChatTypeEdit   ChatType = "edit"
	ChatTypeFix    ChatType = "fix"
)

// ParseChatType maps a request value to a chat type. Unknown and empty
// values are edit chats.
func ParseChatType(s string) ChatType {
	switch ct := ChatType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ChatTypeAsk, ChatTypeCreate, ChatTypeEdit, ChatTypeFix:
		return ct
	default:
		return ChatTypeEdit
	}
}

// ToolSet returns the tools available to the chat type.
func (c ChatType) ToolSet() *Set {
	if c == ChatTypeAsk {
		return askSet
	}
	return buildSet
}

// SystemPrompt returns the system prompt for the chat type.
func (c ChatType) SystemPrompt() string {
	switch c {
	case ChatTypeCreate:
		return createPageSystemPrompt
	case ChatTypeAsk:
		return askSystemPrompt
	default:
		return defaultSystemPrompt
	}
}

const defaultSystemPrompt = `You are an expert frontend engineer working inside a user's web project.
You help the user understand and change their code.

Use list_files and read_files to inspect the project before making changes.
Prefer small, targeted edits with edit_file over rewriting whole files.
Use create_file only for files that do not exist yet.
Use terminal_command for installing packages or running project scripts.
Never invent file contents you have not read.
Keep answers short and explain what you changed.`

// askSystemPrompt may only name tools of the ask set.
const askSystemPrompt = `You are an expert frontend engineer answering questions about a user's web project.
You can read the project but you cannot change it.

Use list_files to find relevant files and read_files to read them before answering.
Never invent file contents you have not read.
When a change would help, describe it and let the user apply it.
Keep answers short and point to the files and lines you refer to.`

const createPageSystemPrompt = `You are an expert frontend engineer creating a new page for the user's web project.
The user describes the page they want. Build it end to end.

Start by reading the project's layout and existing components with list_files and read_files.
Create the page and any new components with create_file, and wire them in with edit_file.
Match the project's framework, styling approach and conventions.
Make the page responsive and accessible.
When you are done, summarize the files you created or changed.`

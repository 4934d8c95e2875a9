package main

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/youruser/gemchat/internal/config"
	"github.com/youruser/gemchat/internal/gemini"
	"github.com/youruser/gemchat/internal/logging"
	"github.com/youruser/gemchat/internal/session"
	"github.com/youruser/gemchat/internal/storage"
)

//go:embed version.txt
var version string

// buildCommit is set via -ldflags or falls back to VCS info from debug.ReadBuildInfo.
var buildCommit string

var (
	appConfig    *config.Config
	store        *session.Store
	orchestrator *session.Orchestrator
	kvBackend    storage.KV
	log          = logging.Get()

	engineMu  sync.Mutex
	respondMu sync.Mutex
)

// gate carries the confirmation answer for the request being dispatched.
// Destructive commands run synchronously on the read loop, so one slot is
// enough.
type gate struct {
	mu    sync.Mutex
	allow bool
}

func (g *gate) set(allow bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allow = allow
}

func (g *gate) Confirm(string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allow
}

var confirmGate gate

type ctxKey int

const requestIDKey ctxKey = 0

// streamingProvider relays content chunks to stdout as they arrive, tagged
// with the request id carried in the context, before handing them to the
// orchestrator's callback.
type streamingProvider struct {
	inner *gemini.Client
}

func (p streamingProvider) GenerateStream(ctx context.Context, model string, payload gemini.Payload, callback gemini.StreamCallback) error {
	reqID, _ := ctx.Value(requestIDKey).(string)
	return p.inner.GenerateStream(ctx, model, payload, func(event gemini.StreamEvent) {
		if event.Type == "content" && reqID != "" {
			respond(reqID, map[string]any{"type": "chunk", "content": event.Text})
		}
		callback(event)
	})
}

func (p streamingProvider) Generate(ctx context.Context, model string, payload gemini.Payload) (string, error) {
	return p.inner.Generate(ctx, model, payload)
}

// getBuildCommit returns the short commit hash, resolving from VCS build info if needed.
func getBuildCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func versionString() string {
	v := strings.TrimSpace(version)
	if commit := getBuildCommit(); commit != "" {
		return v + " (" + commit + ")"
	}
	return v
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Printf("gemchat %s\n", versionString())
			return
		case "--build":
			if commit := getBuildCommit(); commit != "" {
				fmt.Println(commit)
			} else {
				fmt.Println("unknown")
			}
			return
		}
	}

	if os.Getenv("GEMCHAT_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "gemchat: process started with GEMCHAT_DEBUG=1\n")
	}
	logBuildInfo()

	defer closeBackend()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		handleRequest(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			respond("", map[string]any{
				"type":    "error",
				"message": "Request too large (max 1MB). Split the request.",
			})
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "stdin error: %v\n", err)
		os.Exit(1)
	}
}

func logBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		log.Info("Build info: unavailable")
		return
	}

	var revision string
	var buildTime string
	var modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	version := info.Main.Version
	if revision != "" {
		version = revision
	}
	if modified == "true" {
		version += " (modified)"
	}

	if buildTime != "" {
		log.Info("Build: %s; go=%s; time=%s", version, runtime.Version(), buildTime)
		return
	}
	log.Info("Build: %s; go=%s", version, runtime.Version())
}

// ensureEngine loads config and wires the store and orchestrator lazily on
// first use.
func ensureEngine() error {
	engineMu.Lock()
	defer engineMu.Unlock()

	if store != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var kv storage.KV
	switch cfg.StorageBackend {
	case "sqlite":
		kv, err = storage.NewSQLiteKV(cfg.StoragePath)
	default:
		kv, err = storage.NewFileKV(cfg.StoragePath)
	}
	if err != nil {
		return err
	}

	s, err := session.NewStore(storage.NewAdapter(kv), &confirmGate, cfg.DefaultModel)
	if err != nil {
		kv.Close()
		return err
	}

	appConfig = cfg
	kvBackend = kv
	store = s
	provider := streamingProvider{inner: gemini.NewClient(cfg.BaseURL, cfg.APIKey)}
	orchestrator = session.NewOrchestrator(store, provider, cfg.NamingModel, nil)
	return nil
}

func closeBackend() {
	engineMu.Lock()
	defer engineMu.Unlock()
	if kvBackend != nil {
		if err := kvBackend.Close(); err != nil {
			log.Error("Failed to close storage backend: %v", err)
		}
	}
	log.Close()
}

func requestID(req map[string]any) string {
	switch v := req["request_id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func respond(reqID string, payload map[string]any) {
	if reqID != "" {
		payload["request_id"] = reqID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to marshal response: %v", err)
		return
	}
	respondMu.Lock()
	defer respondMu.Unlock()
	fmt.Println(string(data))
	if t, ok := payload["type"].(string); ok {
		log.Response(t, string(data))
	}
}

func errorResponse(err error) map[string]any {
	return map[string]any{"type": "error", "message": err.Error()}
}

func chatResponse(c any) map[string]any {
	return map[string]any{"type": "chat", "chat": c}
}

func handleRequest(line string) {
	var req map[string]any
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.Error("Invalid JSON request: %s", line)
		respond("", map[string]any{"type": "error", "message": "Invalid JSON"})
		return
	}

	action, _ := req["action"].(string)
	log.Request(action, line)
	reqID := requestID(req)

	switch action {
	case "ping":
		respond(reqID, map[string]any{"type": "ok"})
		return
	case "version":
		respond(reqID, map[string]any{"type": "version", "version": versionString()})
		return
	case "shutdown":
		closeBackend()
		os.Exit(0)
	}

	if err := ensureEngine(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}

	confirm, _ := req["confirm"].(bool)
	confirmGate.set(confirm)

	switch action {
	case "state":
		respond(reqID, map[string]any{
			"type":          "state",
			"chats":         store.ChatSummaries(),
			"models":        session.Models(),
			"model":         store.SelectedModel(),
			"naming_model":  appConfig.NamingModel,
			"view_options":  store.ViewOptions(),
			"is_generating": store.IsGenerating(),
			"is_loading":    store.IsLoading(),
			"token_count":   store.AggregateTokenCount(),
		})

	case "chat_new":
		store.NewChat()
		respond(reqID, map[string]any{"type": "ok"})

	case "chat_list":
		respond(reqID, map[string]any{"type": "chat_list", "chats": store.ChatSummaries()})

	case "chat_get":
		id, _ := req["id"].(string)
		if id == "" {
			active, ok := store.ActiveChat()
			if !ok {
				respond(reqID, map[string]any{"type": "error", "message": "No active chat"})
				return
			}
			respond(reqID, chatResponse(active))
			return
		}
		c, ok := store.Chat(id)
		if !ok {
			respond(reqID, errorResponse(session.ErrChatNotFound))
			return
		}
		respond(reqID, chatResponse(c))

	case "chat_select":
		id, _ := req["id"].(string)
		if id == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: id"})
			return
		}
		if err := store.SelectChat(id); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "chat_delete":
		id, _ := req["id"].(string)
		if id == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: id"})
			return
		}
		if err := store.DeleteChat(id); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "chat_rename":
		id, _ := req["id"].(string)
		name, _ := req["name"].(string)
		if id == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: id"})
			return
		}
		if err := store.EditChatName(id, name); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "chat_clone":
		id, _ := req["id"].(string)
		if id == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: id"})
			return
		}
		upto, _ := req["upto_message_id"].(string)
		clone, err := store.CloneChat(id, upto)
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "id": clone.ID})

	case "message_pin":
		chatID, _ := req["chat_id"].(string)
		messageID, _ := req["message_id"].(string)
		if chatID == "" || messageID == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: chat_id or message_id"})
			return
		}
		store.TogglePinMessage(chatID, messageID)
		respond(reqID, map[string]any{"type": "ok"})

	case "clear_all":
		if err := store.ClearAll(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "list_models":
		respond(reqID, map[string]any{
			"type":     "models",
			"models":   session.Models(),
			"selected": store.SelectedModel(),
		})

	case "select_model":
		key, _ := req["model"].(string)
		if key == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: model"})
			return
		}
		if err := store.UpdateSelectModel(key); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "toggle_options":
		respond(reqID, map[string]any{"type": "ok", "view_options": store.ToggleViewOptions()})

	case "get_options":
		respond(reqID, map[string]any{"type": "options", "options": store.Options().Map()})

	case "set_option":
		key, _ := req["key"].(string)
		value, _ := req["value"].(string)
		opt, ok := session.OptionFromKey(key)
		if !ok {
			respond(reqID, map[string]any{"type": "error", "message": fmt.Sprintf("Unknown option: %s", key)})
			return
		}
		if err := store.UpdateOption(opt, value); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "restore_defaults":
		if err := store.RestoreDefaults(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "options": store.Options().Map()})

	case "token_count":
		respond(reqID, map[string]any{"type": "token_count", "total": store.AggregateTokenCount()})

	case "estimate_tokens":
		text, _ := req["text"].(string)
		respond(reqID, map[string]any{"type": "token_estimate", "tokens": gemini.EstimateTokensSimple(text)})

	case "send":
		content, _ := req["content"].(string)
		if content == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: content"})
			return
		}
		go handleExchange(reqID, func(ctx context.Context) error {
			return orchestrator.SendMessage(ctx, content)
		})

	case "regenerate":
		// Edit mode carries the revised text in the request; there is no
		// interactive prompt on a line-oriented surface.
		edit, _ := req["edit"].(bool)
		newText, _ := req["new_text"].(string)
		if edit && newText == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: new_text"})
			return
		}
		go handleExchange(reqID, func(ctx context.Context) error {
			if edit {
				return orchestrator.EditMessage(ctx, newText)
			}
			return orchestrator.Regenerate(ctx, false)
		})

	case "edit_message":
		newText, _ := req["new_text"].(string)
		if newText == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: new_text"})
			return
		}
		go handleExchange(reqID, func(ctx context.Context) error {
			return orchestrator.EditMessage(ctx, newText)
		})

	case "export_chats":
		data, err := store.Export()
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		if path, _ := req["path"].(string); path != "" {
			if err := os.WriteFile(path, data, 0644); err != nil {
				respond(reqID, errorResponse(err))
				return
			}
			respond(reqID, map[string]any{"type": "ok", "path": path})
			return
		}
		respond(reqID, map[string]any{"type": "export", "data": json.RawMessage(data)})

	case "import_chats":
		var data []byte
		if path, _ := req["path"].(string); path != "" {
			fileData, err := os.ReadFile(path)
			if err != nil {
				respond(reqID, errorResponse(err))
				return
			}
			data = fileData
		} else if raw, ok := req["data"]; ok {
			encoded, err := json.Marshal(raw)
			if err != nil {
				respond(reqID, errorResponse(err))
				return
			}
			data = encoded
		} else {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: path or data"})
			return
		}
		if err := store.Import(data); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "chats": store.ChatSummaries()})

	default:
		respond(reqID, map[string]any{"type": "error", "message": fmt.Sprintf("Unknown action: %s", action)})
	}
}

// handleExchange runs one streaming exchange and reports the final chat
// state once the stream settles.
func handleExchange(reqID string, run func(ctx context.Context) error) {
	ctx := context.WithValue(context.Background(), requestIDKey, reqID)
	if err := run(ctx); err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	resp := map[string]any{"type": "done"}
	if active, ok := store.ActiveChat(); ok {
		resp["chat"] = active
	}
	respond(reqID, resp)
}

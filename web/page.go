package web

import (
	"html/template"
	"net/http"

	"voxsearch/session"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	history, err := s.Store.History(r.Context(), id)
	if err != nil {
		s.Logger.Error("failed to load history", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := struct {
		History  []session.Message
		Settings any
	}{
		History:  history,
		Settings: toPayload(s.Settings.Settings()),
	}

	w.Header().Set("Content-Type", "text/html")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.Logger.Error("failed to execute template", "error", err)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Ask With Your Voice</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-100">
    <div class="container mx-auto px-4 py-8 max-w-3xl">
        <h1 class="text-3xl font-bold mb-2">Ask With Your Voice</h1>
        <p class="text-gray-600 mb-4">Speak a question; it gets transcribed, searched against the documents, and answered.</p>

        <div class="flex items-center gap-3 mb-4">
            <span id="status" class="text-sm text-gray-500">checking search service…</span>
            <button id="clear" class="ml-auto text-sm text-gray-600 bg-white border rounded px-3 py-1 hover:bg-gray-50">Clear conversation</button>
        </div>

        <div id="chat" class="space-y-3 mb-4">
            {{range .History}}
            <div class="bg-white shadow rounded-lg p-4 {{if eq .Role "assistant"}}border-l-4 border-blue-400{{end}}">
                <p class="text-gray-500 text-xs">{{.Role}} · {{.CreatedAt.Format "15:04:05"}}</p>
                <p class="text-base whitespace-pre-wrap">{{.Content}}</p>
                {{if .Meta}}<p class="text-xs text-amber-600 mt-1">{{.Meta}}</p>{{end}}
            </div>
            {{end}}
        </div>

        <div class="bg-white shadow rounded-lg p-4 mb-4">
            <div class="flex gap-2">
                <input id="question" type="text" placeholder="Type a question…"
                       class="flex-1 border rounded px-3 py-2">
                <button id="ask" class="bg-blue-600 text-white rounded px-4 py-2 hover:bg-blue-700">Ask</button>
                <button id="mic" class="bg-emerald-600 text-white rounded px-4 py-2 hover:bg-emerald-700">Start voice</button>
            </div>
            <p id="mic-status" class="text-xs text-gray-500 mt-2">voice capture stopped</p>
        </div>

        <details class="bg-white shadow rounded-lg p-4">
            <summary class="cursor-pointer font-medium">Settings</summary>
            <div class="grid grid-cols-2 gap-3 mt-3 text-sm">
                <label>Chunk duration (s)
                    <input id="set-chunk" type="number" min="1" max="10" class="border rounded w-full px-2 py-1">
                </label>
                <label>Model size
                    <select id="set-model" class="border rounded w-full px-2 py-1">
                        <option>tiny</option><option>base</option><option>small</option>
                        <option>medium</option><option>large</option>
                    </select>
                </label>
                <label>Language
                    <select id="set-lang" class="border rounded w-full px-2 py-1">
                        <option value="">auto-detect</option>
                        <option>en</option><option>es</option><option>fr</option><option>de</option>
                        <option>it</option><option>pt</option><option>ru</option><option>ja</option>
                        <option>ko</option><option>zh</option>
                    </select>
                </label>
                <label>Search results
                    <input id="set-limit" type="number" min="1" max="10" class="border rounded w-full px-2 py-1">
                </label>
                <label>Answer model
                    <select id="set-answer" class="border rounded w-full px-2 py-1">
                        <option>openai</option><option>gemini</option>
                    </select>
                </label>
                <label class="flex items-end gap-2">
                    <input id="set-auto" type="checkbox"> Auto-search on transcription
                </label>
            </div>
            <button id="save-settings" class="mt-3 bg-gray-800 text-white rounded px-3 py-1 text-sm">Save</button>
        </details>
    </div>

    <script>
    const chat = document.getElementById("chat");

    function addMessage(role, content, meta) {
        const div = document.createElement("div");
        div.className = "bg-white shadow rounded-lg p-4" +
            (role === "assistant" ? " border-l-4 border-blue-400" : "");
        const head = document.createElement("p");
        head.className = "text-gray-500 text-xs";
        head.textContent = role;
        const body = document.createElement("p");
        body.className = "text-base whitespace-pre-wrap";
        body.textContent = content;
        div.append(head, body);
        if (meta) {
            const m = document.createElement("p");
            m.className = "text-xs text-amber-600 mt-1";
            m.textContent = meta;
            div.append(m);
        }
        chat.append(div);
        div.scrollIntoView();
    }

    async function refreshStatus() {
        const res = await fetch("/api/status");
        const st = await res.json();
        const el = document.getElementById("status");
        el.textContent = st.connected ? "search service connected" : "not connected: " + st.error;
        el.className = "text-sm " + (st.connected ? "text-emerald-600" : "text-red-600");
        return st.connected;
    }
    refreshStatus();

    document.getElementById("ask").onclick = async () => {
        const input = document.getElementById("question");
        const question = input.value.trim();
        if (!question) return;
        input.value = "";
        addMessage("user", question);
        const res = await fetch("/api/ask", {
            method: "POST",
            headers: {"Content-Type": "application/json"},
            body: JSON.stringify({question}),
        });
        if (!res.ok) { addMessage("assistant", "request failed"); return; }
        const data = await res.json();
        addMessage("assistant", data.answer.content, data.answer.meta);
    };

    document.getElementById("clear").onclick = async () => {
        await fetch("/api/clear", {method: "POST"});
        chat.replaceChildren();
    };

    async function loadSettings() {
        const s = await (await fetch("/api/settings")).json();
        document.getElementById("set-chunk").value = s.chunk_duration_seconds;
        document.getElementById("set-model").value = s.model_size;
        document.getElementById("set-lang").value = s.language;
        document.getElementById("set-limit").value = s.search_limit;
        document.getElementById("set-answer").value = s.answer_model;
        document.getElementById("set-auto").checked = s.auto_search;
    }
    loadSettings();

    document.getElementById("save-settings").onclick = async () => {
        const body = {
            chunk_duration_seconds: parseInt(document.getElementById("set-chunk").value, 10),
            model_size: document.getElementById("set-model").value,
            language: document.getElementById("set-lang").value,
            search_limit: parseInt(document.getElementById("set-limit").value, 10),
            answer_model: document.getElementById("set-answer").value,
            auto_search: document.getElementById("set-auto").checked,
        };
        const res = await fetch("/api/settings", {
            method: "POST",
            headers: {"Content-Type": "application/json"},
            body: JSON.stringify(body),
        });
        if (!res.ok) alert(await res.text()); else loadSettings();
    };

    // Voice capture: PCM frames over the websocket.
    let ws = null, audioCtx = null, mediaStream = null;
    const micBtn = document.getElementById("mic");
    const micStatus = document.getElementById("mic-status");

    micBtn.onclick = async () => {
        if (ws) { stopCapture(); return; }
        if (!await refreshStatus()) {
            micStatus.textContent = "not connected; capture not started";
            return;
        }
        try {
            mediaStream = await navigator.mediaDevices.getUserMedia({audio: true});
        } catch (err) {
            micStatus.textContent = "microphone unavailable: " + err.message;
            return;
        }

        ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/stream");
        ws.onmessage = (ev) => {
            const msg = JSON.parse(ev.data);
            if (msg.event === "segment") addMessage("user", msg.text);
            if (msg.event === "answer") addMessage("assistant", msg.text, msg.meta);
            if (msg.event === "error") micStatus.textContent = msg.error;
        };
        ws.onopen = () => {
            audioCtx = new AudioContext();
            const source = audioCtx.createMediaStreamSource(mediaStream);
            const proc = audioCtx.createScriptProcessor(4096, 1, 1);
            ws.send(JSON.stringify({
                event: "start", encoding: "pcm16",
                sample_rate: audioCtx.sampleRate, channels: 1,
            }));
            proc.onaudioprocess = (e) => {
                if (!ws || ws.readyState !== WebSocket.OPEN) return;
                const input = e.inputBuffer.getChannelData(0);
                const pcm = new Int16Array(input.length);
                for (let i = 0; i < input.length; i++) {
                    pcm[i] = Math.max(-1, Math.min(1, input[i])) * 32767;
                }
                const bytes = new Uint8Array(pcm.buffer);
                let bin = "";
                for (let i = 0; i < bytes.length; i++) bin += String.fromCharCode(bytes[i]);
                ws.send(JSON.stringify({event: "media", payload: btoa(bin)}));
            };
            source.connect(proc);
            proc.connect(audioCtx.destination);
            micBtn.textContent = "Stop voice";
            micStatus.textContent = "listening…";
        };
        ws.onclose = () => stopCapture();
    };

    function stopCapture() {
        if (ws && ws.readyState === WebSocket.OPEN) {
            ws.send(JSON.stringify({event: "stop"}));
            ws.close();
        }
        ws = null;
        if (audioCtx) { audioCtx.close(); audioCtx = null; }
        if (mediaStream) {
            mediaStream.getTracks().forEach(t => t.stop());
            mediaStream = null;
        }
        micBtn.textContent = "Start voice";
        micStatus.textContent = "voice capture stopped";
    }
    </script>
</body>
</html>
`))

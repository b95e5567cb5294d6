package http

import (
	"net/http"
)

// statusPageHandler serves a small self-contained page: current status,
// track history and an audio player, refreshed by polling the JSON
// endpoints from the browser.
func (s *Server) statusPageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(statusPageHTML))
}

const statusPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Stream Status</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body {
            font-family: Arial, sans-serif;
            margin: 0;
            padding: 20px;
            background-color: #f4f4f4;
            color: #333;
        }
        h1 {
            color: #2c3e50;
            border-bottom: 2px solid #3498db;
            padding-bottom: 10px;
        }
        .panel {
            background-color: white;
            border-radius: 5px;
            box-shadow: 0 2px 5px rgba(0,0,0,0.1);
            margin-bottom: 20px;
            padding: 15px;
        }
        .badge {
            display: inline-block;
            padding: 3px 10px;
            border-radius: 3px;
            color: white;
            font-size: 0.9em;
        }
        .badge.online { background-color: #27ae60; }
        .badge.offline { background-color: #c0392b; }
        .now-playing {
            font-size: 1.3em;
            margin: 10px 0;
        }
        .meta { color: #777; font-size: 0.9em; }
        .history ul { list-style-type: none; padding: 0; }
        .history li {
            padding: 5px 0;
            border-bottom: 1px solid #eee;
        }
        .error-container {
            background-color: #f8d7da;
            color: #721c24;
            padding: 10px;
            margin-bottom: 20px;
            border-radius: 5px;
            display: none;
        }
        audio { width: 100%; margin-top: 10px; }
    </style>
</head>
<body>
    <h1>Stream Status</h1>
    <div id="error" class="error-container"></div>
    <div class="panel">
        <div>State: <span id="state" class="badge offline">unknown</span></div>
        <div id="now-playing" class="now-playing">&mdash;</div>
        <div id="meta" class="meta"></div>
        <audio id="player" controls preload="none"></audio>
        <div id="player-error" class="meta"></div>
    </div>
    <div class="panel history">
        <h2>Recent tracks</h2>
        <ul id="history"></ul>
    </div>
    <script>
        var player = document.getElementById('player');

        // MediaError codes are numeric; map them to something a listener
        // can act on.
        function describeMediaError(error) {
            if (!error) return 'Playback failed for an unknown reason.';
            switch (error.code) {
                case MediaError.MEDIA_ERR_ABORTED:
                    return 'Playback was aborted.';
                case MediaError.MEDIA_ERR_NETWORK:
                    return 'A network error interrupted playback.';
                case MediaError.MEDIA_ERR_DECODE:
                    return 'The stream could not be decoded.';
                case MediaError.MEDIA_ERR_SRC_NOT_SUPPORTED:
                    return 'The stream source is not supported by this browser.';
                default:
                    return 'Playback failed for an unknown reason.';
            }
        }

        player.addEventListener('error', function() {
            document.getElementById('player-error').textContent =
                describeMediaError(player.error);
        });

        function render(snapshot) {
            var errorBox = document.getElementById('error');
            if (snapshot.error) {
                errorBox.textContent = snapshot.error;
                errorBox.style.display = 'block';
            } else {
                errorBox.style.display = 'none';
            }

            var st = snapshot.status;
            var state = document.getElementById('state');
            if (!st) {
                state.textContent = snapshot.isLoading ? 'loading' : 'unknown';
                return;
            }
            state.textContent = st.isOnline ? 'on air' : 'off air';
            state.className = 'badge ' + (st.isOnline ? 'online' : 'offline');

            var title = st.currentlyPlaying || '—';
            document.getElementById('now-playing').textContent = title;

            var meta = [];
            if (st.listeners !== null && st.listeners !== undefined) {
                meta.push(st.listeners + ' listeners');
            }
            if (st.bitrate !== null && st.bitrate !== undefined) {
                meta.push(st.bitrate + ' kbps');
            }
            if (snapshot.updatedAt) {
                meta.push('updated ' + snapshot.updatedAt);
            }
            document.getElementById('meta').textContent = meta.join(' · ');

            var playbackUrl = st.playbackUrl || st.listenUrl;
            if (playbackUrl && player.getAttribute('src') !== playbackUrl) {
                player.setAttribute('src', playbackUrl);
                document.getElementById('player-error').textContent = '';
            }

            var list = document.getElementById('history');
            list.innerHTML = '';
            (snapshot.history || []).forEach(function(entry) {
                var li = document.createElement('li');
                li.textContent = entry.displayTitle + ' · ' + entry.startedAt;
                list.appendChild(li);
            });
        }

        function poll() {
            fetch('/now-playing')
                .then(function(resp) { return resp.json(); })
                .then(render)
                .catch(function(err) {
                    var errorBox = document.getElementById('error');
                    errorBox.textContent = 'Status endpoint unreachable: ' + err;
                    errorBox.style.display = 'block';
                });
        }

        poll();
        setInterval(poll, 15000);
    </script>
</body>
</html>
`

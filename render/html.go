package render

import (
	"encoding/json"
	"fmt"
	"html"

	"github.com/TFMV/topograph/view"
)

// HTMLRenderer outputs a self-contained canvas page. With a live URL the
// page streams frames over a websocket and sends pointer events back.
type HTMLRenderer struct{}

// Name returns the name of the renderer
func (r *HTMLRenderer) Name() string {
	return "HTML Renderer"
}

// Description returns a description of the renderer
func (r *HTMLRenderer) Description() string {
	return "Renders an interactive canvas page, optionally bound to a live session"
}

// Render creates the page with the frame and theme embedded
func (r *HTMLRenderer) Render(frame view.Frame, options *OutputOptions) ([]byte, error) {
	// json escapes <, > and & so the data cannot close the script element
	frameJSON, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	themeJSON, err := json.Marshal(options.Theme)
	if err != nil {
		return nil, fmt.Errorf("encode theme: %w", err)
	}
	liveJSON, err := json.Marshal(options.LiveURL)
	if err != nil {
		return nil, fmt.Errorf("encode live url: %w", err)
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        body { margin: 0; padding: 16px; font-family: sans-serif; background: %s; color: %s; }
        canvas { display: block; border: 1px solid rgba(128,128,128,0.3); touch-action: none; }
        #status { font-size: 12px; margin-top: 6px; opacity: 0.7; }
    </style>
</head>
<body>
    <canvas id="graph"></canvas>
    <div id="status"></div>
    <script>
    const theme = %s;
    const liveURL = %s;
    let frame = %s;
    const fontSize = %g;
    const showLabels = %t;

    const canvas = document.getElementById('graph');
    const ctx = canvas.getContext('2d');
    const status = document.getElementById('status');
    let socket = null;
    let focus = frame.focus || '';
    let pressed = false;

    function dimmed(n) { return !!frame.focus && !n.highlighted; }

    function nodeColor(n) {
        if (n.focal) return theme.focal;
        if (dimmed(n)) return theme.dimmed;
        if (n.highlighted) return theme.highlight;
        const lv = Math.max(0, Math.min(n.level, theme.levelColors.length - 1));
        return theme.levelColors[lv];
    }

    function edgeColor(e) {
        if (e.highlighted) return theme.edgeHighlight;
        return frame.focus ? theme.edgeDimmed : theme.edge;
    }

    function draw() {
        canvas.width = frame.width;
        canvas.height = frame.height;
        ctx.fillStyle = theme.background;
        ctx.fillRect(0, 0, canvas.width, canvas.height);

        const index = {};
        frame.nodes.forEach(n => { index[n.id] = n; });

        frame.edges.forEach(e => {
            const s = index[e.source], t = index[e.target];
            if (!s || !t) return;
            ctx.strokeStyle = edgeColor(e);
            ctx.lineWidth = e.highlighted ? 2 : 1;
            ctx.beginPath();
            ctx.moveTo(s.x, s.y);
            ctx.lineTo(t.x, t.y);
            ctx.stroke();
        });

        frame.nodes.forEach(n => {
            ctx.fillStyle = nodeColor(n);
            ctx.strokeStyle = theme.outline;
            ctx.beginPath();
            ctx.arc(n.x, n.y, n.radius, 0, 2 * Math.PI);
            ctx.fill();
            ctx.stroke();
            if (showLabels && n.label) {
                ctx.fillStyle = theme.label;
                ctx.font = fontSize + 'px sans-serif';
                ctx.textAlign = 'center';
                ctx.fillText(n.label, n.x, n.y + n.radius + fontSize + 2);
            }
        });
    }

    function hit(x, y) {
        for (let i = frame.nodes.length - 1; i >= 0; i--) {
            const n = frame.nodes[i];
            if (Math.hypot(x - n.x, y - n.y) <= n.radius) return n.id;
        }
        return '';
    }

    function send(msg) {
        if (socket && socket.readyState === WebSocket.OPEN) socket.send(JSON.stringify(msg));
    }

    function point(ev) {
        const r = canvas.getBoundingClientRect();
        return { x: ev.clientX - r.left, y: ev.clientY - r.top };
    }

    canvas.addEventListener('pointerdown', ev => {
        const p = point(ev);
        pressed = true;
        send({ type: 'down', x: p.x, y: p.y });
    });
    canvas.addEventListener('pointermove', ev => {
        const p = point(ev);
        if (pressed) {
            send({ type: 'move', x: p.x, y: p.y });
            return;
        }
        const id = hit(p.x, p.y);
        if (id !== focus) {
            focus = id;
            send({ type: 'focus', id: id });
        }
    });
    canvas.addEventListener('pointerup', () => {
        pressed = false;
        send({ type: 'up' });
    });
    canvas.addEventListener('pointerleave', () => {
        pressed = false;
        send({ type: 'leave' });
        if (focus) {
            focus = '';
            send({ type: 'focus', id: '' });
        }
    });

    if (liveURL) {
        const url = new URL(liveURL, window.location.href);
        url.protocol = url.protocol === 'https:' ? 'wss:' : 'ws:';
        socket = new WebSocket(url.toString());
        socket.onmessage = ev => {
            const msg = JSON.parse(ev.data);
            if (msg.type === 'frame') {
                frame = msg.frame;
                requestAnimationFrame(draw);
            } else if (msg.type === 'activate') {
                const a = msg.activation;
                status.textContent = a.url ? 'open ' + a.url : 'selected ' + a.id;
                if (a.url) window.open(a.url, '_blank');
            } else if (msg.type === 'error') {
                status.textContent = msg.error;
            }
        };
        socket.onclose = () => { status.textContent = 'disconnected'; };
    }

    draw();
    </script>
</body>
</html>
`, html.EscapeString(options.Title), options.Theme.Background, options.Theme.Label,
		themeJSON, liveJSON, frameJSON, options.FontSize, options.ShowLabels)

	return []byte(page), nil
}

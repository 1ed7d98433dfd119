package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"moxxy-bridge/internal/config"
	"moxxy-bridge/internal/snapshot"
)

// RodDriver drives a headless Chromium through Rod. It either attaches to an
// existing DevTools endpoint or launches its own browser process.
type RodDriver struct {
	cfg     config.BrowserConfig
	browser *rod.Browser
}

// NewRodDriver creates a driver; the browser itself is not started until the
// first Start call.
func NewRodDriver(cfg config.BrowserConfig) *RodDriver {
	return &RodDriver{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one using Rod's
// launcher. A healthy existing connection is reused.
func (d *RodDriver) Start(ctx context.Context) error {
	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		log.Printf("stale browser connection detected, relaunching")
		_ = d.browser.Close()
		d.browser = nil
	}

	controlURL := d.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(d.cfg.IsHeadless()).
			Set(flags.NoSandbox).
			Set("disable-blink-features", "AutomationControlled")
		if len(d.cfg.Launch) > 0 {
			launch = launch.Bin(d.cfg.Launch[0])
			for _, rawFlag := range d.cfg.Launch[1:] {
				flagStr := strings.TrimLeft(rawFlag, "-")
				name, val, hasVal := strings.Cut(flagStr, "=")
				if hasVal {
					launch = launch.Set(flags.Flag(name), val)
				} else {
					launch = launch.Set(flags.Flag(name))
				}
			}
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	d.browser = browser
	log.Printf("browser connected at %s", controlURL)
	return nil
}

// NewPage opens an incognito context carrying the bridge user agent and
// returns its page.
func (d *RodDriver) NewPage(ctx context.Context) (Page, error) {
	if d.browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := d.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: d.cfg.GetUserAgent(),
	}); err != nil {
		log.Printf("warning: failed to set user agent: %v", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.GetViewportWidth(),
		Height:            d.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Printf("warning: failed to set viewport: %v", err)
	}

	return &rodPage{page: page}, nil
}

// Close shuts the browser down. Safe to call repeatedly.
func (d *RodDriver) Close() error {
	if d.browser == nil {
		return nil
	}
	err := d.browser.Close()
	d.browser = nil
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(url string, timeout time.Duration) error {
	page := p.page.Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) Back(timeout time.Duration) error {
	page := p.page.Timeout(timeout)
	if err := page.NavigateBack(); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) Forward(timeout time.Duration) error {
	page := p.page.Timeout(timeout)
	if err := page.NavigateForward(); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) Title() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) AXTree() (*snapshot.Node, error) {
	res, err := proto.AccessibilityGetFullAXTree{}.Call(p.page)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Nodes) == 0 {
		return nil, nil
	}
	return buildAXTree(res.Nodes), nil
}

// buildAXTree reassembles CDP's flat node list into a tree. The root is the
// first node never referenced as a child.
func buildAXTree(nodes []*proto.AccessibilityAXNode) *snapshot.Node {
	byID := make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(nodes))
	isChild := make(map[proto.AccessibilityAXNodeID]bool)
	for _, n := range nodes {
		byID[n.NodeID] = n
		for _, id := range n.ChildIDs {
			isChild[id] = true
		}
	}

	root := nodes[0]
	for _, n := range nodes {
		if !isChild[n.NodeID] {
			root = n
			break
		}
	}

	visited := make(map[proto.AccessibilityAXNodeID]bool)
	return convertAXNode(root, byID, visited)
}

func convertAXNode(n *proto.AccessibilityAXNode, byID map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, visited map[proto.AccessibilityAXNodeID]bool) *snapshot.Node {
	visited[n.NodeID] = true

	node := &snapshot.Node{
		Name:  axValueString(n.Name),
		Value: axValueString(n.Value),
	}
	if n.Ignored {
		node.Role = "none"
		node.Name = ""
		node.Value = ""
	} else {
		node.Role = axValueString(n.Role)
	}

	for _, id := range n.ChildIDs {
		child, ok := byID[id]
		if !ok || visited[id] {
			node.Children = append(node.Children, &snapshot.Node{
				Err: fmt.Errorf("unresolvable accessibility node %v", id),
			})
			continue
		}
		node.Children = append(node.Children, convertAXNode(child, byID, visited))
	}
	return node
}

func axValueString(v *proto.AccessibilityAXValue) string {
	if v == nil {
		return ""
	}
	return v.Value.Str()
}

// ElementsByRole scans the accessibility tree (CDP reports it in document
// pre-order) and resolves matching nodes to live element handles.
func (p *rodPage) ElementsByRole(role, name string, exact bool) ([]Element, error) {
	res, err := proto.AccessibilityGetFullAXTree{}.Call(p.page)
	if err != nil {
		return nil, err
	}

	var out []Element
	for _, n := range res.Nodes {
		if n.Ignored || n.BackendDOMNodeID == 0 {
			continue
		}
		if axValueString(n.Role) != role {
			continue
		}
		if !nameMatches(axValueString(n.Name), name, exact) {
			continue
		}

		obj, err := proto.DOMResolveNode{BackendNodeID: n.BackendDOMNodeID}.Call(p.page)
		if err != nil {
			continue
		}
		el, err := p.page.ElementFromObject(obj.Object)
		if err != nil {
			continue
		}
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func nameMatches(have, want string, exact bool) bool {
	if exact {
		return have == want
	}
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(have), strings.ToLower(want))
}

func (p *rodPage) Eval(js string) (string, error) {
	res, err := p.page.Eval(js)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "null", nil
	}
	return evalResultText(res.Value), nil
}

// evalResultText renders an evaluation result as indented JSON: strings come
// back quoted, objects pretty-printed.
func evalResultText(v gson.JSON) string {
	if v.Nil() {
		return "null"
	}
	return v.JSON("", "  ")
}

func (p *rodPage) TypeText(text string) error {
	for _, r := range text {
		if err := p.page.Keyboard.Type(input.Key(r)); err != nil {
			return err
		}
	}
	return nil
}

func (p *rodPage) Screenshot() ([]byte, error) {
	return p.page.Screenshot(false, nil)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(timeout time.Duration) error {
	return e.el.Timeout(timeout).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Fill(text string, timeout time.Duration) error {
	el := e.el.Timeout(timeout)
	_ = el.SelectAllText()
	return el.Input(text)
}

func (e *rodElement) ScrollIntoView(timeout time.Duration) error {
	return e.el.Timeout(timeout).ScrollIntoView()
}

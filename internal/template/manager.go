package template

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"fleetsync/internal/fleet"
	"fleetsync/pkg/logging"
)

// Clock supplies timestamps for created/updated fields.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for timestamps.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// Manager holds the template registry: the built-in templates followed by
// imported or created ones, in registration order.
type Manager struct {
	mu        sync.RWMutex
	engine    *Engine
	storage   *Storage
	clock     Clock
	order     []string
	templates map[string]*ConfigTemplate
	builtin   map[string]bool
}

// NewManager creates a Manager with the built-in templates registered.
// storage may be nil, in which case Create does not persist.
func NewManager(storage *Storage, opts ...Option) *Manager {
	m := &Manager{
		engine:    NewEngine(),
		storage:   storage,
		clock:     realClock{},
		templates: make(map[string]*ConfigTemplate),
		builtin:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, t := range builtinTemplates(m.now()) {
		m.register(t)
		m.builtin[t.Name] = true
	}
	logging.Debug("Templates", "Loaded %d built-in templates", len(m.order))
	return m
}

func (m *Manager) now() time.Time {
	// Round(0) drops the monotonic reading so timestamps compare equal after
	// an export/import round trip.
	return m.clock.Now().UTC().Round(0)
}

// register adds or replaces t. Replacing keeps the original position.
func (m *Manager) register(t *ConfigTemplate) {
	if _, ok := m.templates[t.Name]; !ok {
		m.order = append(m.order, t.Name)
	}
	m.templates[t.Name] = t
}

// LoadDirectory imports every template document in the storage directory.
// Unreadable documents are logged and skipped.
func (m *Manager) LoadDirectory() (int, error) {
	if m.storage == nil {
		return 0, nil
	}
	files, err := m.storage.List()
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, path := range files {
		t, err := ReadFile(path)
		if err != nil {
			logging.Warn("Templates", "Skipping %s: %v", path, err)
			continue
		}
		m.mu.Lock()
		m.register(t)
		m.mu.Unlock()
		loaded++
	}
	if loaded > 0 {
		logging.Info("Templates", "Loaded %d templates from %s", loaded, m.storage.Dir())
	}
	return loaded, nil
}

// List returns all templates in registration order.
func (m *Manager) List() []*ConfigTemplate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ConfigTemplate, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.templates[name])
	}
	return out
}

// Get returns the named template. A template saved to the templates
// directory after start-up is loaded on first use.
func (m *Manager) Get(name string) (*ConfigTemplate, error) {
	m.mu.RLock()
	t, ok := m.templates[name]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}
	if m.storage == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	data, err := m.storage.Load(name)
	if err != nil {
		return nil, err
	}
	t, err = Decode(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	if t.Name != name {
		return nil, fmt.Errorf("%w: %s (document is named %s)", ErrTemplateNotFound, name, t.Name)
	}
	m.mu.Lock()
	m.register(t)
	m.mu.Unlock()
	logging.Debug("Templates", "Loaded template %s from %s", name, m.storage.Dir())
	return t, nil
}

// Delete removes a created or imported template from the registry and the
// templates directory. Built-in templates cannot be deleted.
func (m *Manager) Delete(name string) error {
	if m.builtin[name] {
		return fmt.Errorf("template %s is built in and cannot be deleted", name)
	}

	m.mu.Lock()
	_, registered := m.templates[name]
	if registered {
		delete(m.templates, name)
		for i, n := range m.order {
			if n == name {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if m.storage != nil {
		err := m.storage.Delete(name)
		if err != nil && !(registered && errors.Is(err, ErrTemplateNotFound)) {
			return err
		}
	} else if !registered {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	logging.Info("Templates", "Deleted template %s", name)
	return nil
}

// Generate resolves the named template with vars.
func (m *Manager) Generate(name string, vars map[string]any) (map[string]any, error) {
	t, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	logging.Debug("Templates", "Generating configuration from template %s", name)

	out, err := m.engine.Replace(t.Data, vars)
	if err != nil {
		var missing *MissingVariablesError
		if errors.As(err, &missing) {
			missing.Template = name
		}
		return nil, err
	}
	return out.(map[string]any), nil
}

// Variables returns the distinct variable names the named template uses,
// sorted, including those covered by inline defaults.
func (m *Manager) Variables(name string) ([]string, error) {
	t, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return m.engine.ExtractVariables(t.Data), nil
}

// ValidateVariables returns one message per variable the template needs but
// vars does not supply and no inline default covers.
func (m *Manager) ValidateVariables(name string, vars map[string]any) []string {
	t, err := m.Get(name)
	if err != nil {
		return []string{fmt.Sprintf("Template %s not found", name)}
	}
	missing := m.engine.MissingVariables(t.Data, vars)
	if len(missing) == 0 {
		return nil
	}
	return (&MissingVariablesError{Template: name, Missing: missing}).Messages()
}

// DefaultForStack returns the first registered template supporting stack.
func (m *Manager) DefaultForStack(stack string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		if m.templates[name].SupportsStack(stack) {
			return name, true
		}
	}
	return "", false
}

// ByStack returns every template supporting stack, in registration order.
func (m *Manager) ByStack(stack string) []*ConfigTemplate {
	var out []*ConfigTemplate
	for _, t := range m.List() {
		if t.SupportsStack(stack) {
			out = append(out, t)
		}
	}
	return out
}

// Create registers a new template from base and persists it with its
// placeholders intact.
func (m *Manager) Create(name, description string, base map[string]any, stacks, networks []string) (*ConfigTemplate, error) {
	if name == "" {
		return nil, fmt.Errorf("template name cannot be empty")
	}
	if base == nil {
		return nil, fmt.Errorf("template %s: base configuration cannot be empty", name)
	}
	now := m.now()
	t := &ConfigTemplate{
		Name:              name,
		Description:       description,
		Data:              base,
		SupportedStacks:   nonNil(stacks),
		SupportedNetworks: nonNil(networks),
		Version:           "1.0",
		Created:           now,
		Updated:           now,
	}

	if m.storage != nil {
		data, err := Encode(t)
		if err != nil {
			return nil, err
		}
		if err := m.storage.Save(name, data); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.register(t)
	m.mu.Unlock()
	logging.Info("Templates", "Created template %s", name)
	return t, nil
}

// Export writes the named template document to path.
func (m *Manager) Export(name, path string) error {
	t, err := m.Get(name)
	if err != nil {
		return err
	}
	data, err := Encode(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to export template %s: %w", name, err)
	}
	logging.Info("Templates", "Template %s exported to %s", name, path)
	return nil
}

// Import reads a template document and registers it, replacing any
// template with the same name.
func (m *Manager) Import(path string) (*ConfigTemplate, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.register(t)
	m.mu.Unlock()
	logging.Info("Templates", "Imported template %s from %s", t.Name, path)
	return t, nil
}

// NetworkSpec is the per-network input to GenerateNodeConfig.
type NetworkSpec struct {
	Enabled       *bool
	BeaconAPIPort int
}

// GenerateNodeConfig resolves a template for a new node. node_name, stack,
// networks and timestamp are provided as variables on top of vars. When more
// than one network is given, a networks section replaces the template's.
func (m *Manager) GenerateNodeConfig(nodeName, templateName string, stack []string, networks map[string]NetworkSpec, vars ...map[string]any) (map[string]any, error) {
	logging.Info("Templates", "Generating node config for %s using template %s", nodeName, templateName)

	netVars := make(map[string]any, len(networks))
	for k := range networks {
		netVars[k] = true
	}
	sets := append(append([]map[string]any(nil), vars...), map[string]any{
		"node_name": nodeName,
		"stack":     stack,
		"networks":  netVars,
		"timestamp": m.now().Format(time.RFC3339),
	})

	cfg, err := m.Generate(templateName, MergeVariables(sets...))
	if err != nil {
		return nil, err
	}

	if len(networks) > 1 {
		section := make(map[string]any, len(networks))
		for name, spec := range networks {
			enabled := true
			if spec.Enabled != nil {
				enabled = *spec.Enabled
			}
			port := spec.BeaconAPIPort
			if port == 0 {
				port = 5052
			}
			section[name] = map[string]any{"enabled": enabled, "beacon_api_port": port}
		}
		cfg["networks"] = section
	}
	return cfg, nil
}

// InstantiateNode resolves a template into a NodeConfig named nodeName and
// appends it to doc. The document is not saved.
func (m *Manager) InstantiateNode(doc *fleet.Document, nodeName, templateName string, vars map[string]any) (*fleet.NodeConfig, error) {
	if _, err := doc.Node(nodeName); err == nil {
		return nil, fmt.Errorf("node %q already exists", nodeName)
	}

	cfg, err := m.Generate(templateName, MergeVariables(vars, map[string]any{"node_name": nodeName}))
	if err != nil {
		return nil, err
	}
	return m.appendNode(doc, nodeName, templateName, cfg)
}

// InstantiateNetworkNode is InstantiateNode for a node whose stack and
// networks are given explicitly; see GenerateNodeConfig.
func (m *Manager) InstantiateNetworkNode(doc *fleet.Document, nodeName, templateName string, stack []string, networks map[string]NetworkSpec, vars map[string]any) (*fleet.NodeConfig, error) {
	if _, err := doc.Node(nodeName); err == nil {
		return nil, fmt.Errorf("node %q already exists", nodeName)
	}
	cfg, err := m.GenerateNodeConfig(nodeName, templateName, stack, networks, vars)
	if err != nil {
		return nil, err
	}
	return m.appendNode(doc, nodeName, templateName, cfg)
}

func (m *Manager) appendNode(doc *fleet.Document, nodeName, templateName string, cfg map[string]any) (*fleet.NodeConfig, error) {
	coerceNodeFields(cfg)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generated node: %w", err)
	}
	var node fleet.NodeConfig
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("template %s does not produce a valid node: %w", templateName, err)
	}
	node.Name = nodeName

	if err := doc.Add(&node); err != nil {
		return nil, err
	}
	logging.Info("Templates", "Instantiated node %s from template %s", nodeName, templateName)
	return &node, nil
}

// coerceNodeFields converts substituted strings back to the types the node
// schema expects, e.g. "5052" for beacon_api_port.
func coerceNodeFields(cfg map[string]any) {
	coerceInt(cfg, "beacon_api_port")
	coerceInt(cfg, "ssh_port")
	coerceBool(cfg, "ethereum_clients_enabled")
	coerceBool(cfg, "is_local")
	if nets, ok := cfg["networks"].(map[string]any); ok {
		for _, v := range nets {
			if nc, ok := v.(map[string]any); ok {
				coerceInt(nc, "beacon_api_port")
			}
		}
	}
}

func coerceInt(m map[string]any, key string) {
	if s, ok := m[key].(string); ok {
		if n, err := strconv.Atoi(s); err == nil {
			m[key] = n
		}
	}
}

func coerceBool(m map[string]any, key string) {
	if s, ok := m[key].(string); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			m[key] = b
		}
	}
}

// Summary describes the registry.
type Summary struct {
	TotalTemplates     int                 `json:"total_templates" yaml:"total_templates"`
	TemplateNames      []string            `json:"template_names" yaml:"template_names"`
	TemplatesByStack   map[string][]string `json:"templates_by_stack" yaml:"templates_by_stack"`
	TemplatesByNetwork map[string][]string `json:"templates_by_network" yaml:"templates_by_network"`
}

// Summary groups the registered templates by stack and network.
func (m *Manager) Summary() Summary {
	s := Summary{
		TemplatesByStack:   make(map[string][]string),
		TemplatesByNetwork: make(map[string][]string),
	}
	for _, t := range m.List() {
		s.TemplateNames = append(s.TemplateNames, t.Name)
		for _, st := range t.SupportedStacks {
			s.TemplatesByStack[st] = append(s.TemplatesByStack[st], t.Name)
		}
		for _, n := range t.SupportedNetworks {
			s.TemplatesByNetwork[n] = append(s.TemplatesByNetwork[n], t.Name)
		}
	}
	s.TotalTemplates = len(s.TemplateNames)
	return s
}

// StackNames returns every stack supported by some template, sorted.
func (s Summary) StackNames() []string {
	out := make([]string, 0, len(s.TemplatesByStack))
	for k := range s.TemplatesByStack {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

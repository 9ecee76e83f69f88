package astral

import (
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/fsnotify/fsnotify"
)

// ShaderFileExtension is the on-disk shader module format.
const ShaderFileExtension = ".zeshader"

// CompiledStage pairs a stage kind with its backend module.
type CompiledStage struct {
	Kind   ShaderStageKind
	Module *wgpu.ShaderModule
}

// ShaderModules is the compiled form of one shader pass.
type ShaderModules struct {
	Name   string
	Pass   string
	Stages []CompiledStage
}

// Stage returns the compiled module of a stage kind, or nil.
func (m *ShaderModules) Stage(kind ShaderStageKind) *wgpu.ShaderModule {
	for _, s := range m.Stages {
		if s.Kind == kind {
			return s.Module
		}
	}
	return nil
}

// ShaderManager owns the parsed shader declarations and a cache of
// compiled module sets keyed by (shader, pass). Stages of one pass
// compile concurrently; a failed compile logs and leaves any previous
// cached modules in place so a bad edit never blanks the screen.
type ShaderManager struct {
	compiler ShaderCompiler
	logger   Logger

	mu     sync.RWMutex
	decls  map[string]*ShaderDeclaration
	files  map[string]string // absolute path -> shader name
	cache  map[uint64]*ShaderModules
	errors map[string]error // per shader name, last compile failure

	watcher *fsnotify.Watcher
	watchWg sync.WaitGroup
}

func NewShaderManager(compiler ShaderCompiler, logger Logger) *ShaderManager {
	if compiler == nil {
		panic("shader manager needs a compiler")
	}
	if logger == nil {
		logger = NewDefaultLogger("astral", false)
	}
	return &ShaderManager{
		compiler: compiler,
		logger:   logger,
		decls:    map[string]*ShaderDeclaration{},
		files:    map[string]string{},
		cache:    map[uint64]*ShaderModules{},
		errors:   map[string]error{},
	}
}

// SearchShaders walks root and registers every shader module file
// found. Parse failures are logged and skipped; the walk continues.
func (m *ShaderManager) SearchShaders(root string) error {
	found := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ShaderFileExtension) {
			return nil
		}
		if err := m.loadFile(path); err != nil {
			m.logger.Errorf("Skipping shader %s: %v", path, err)
			return nil
		}
		found++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to search shaders under %s: %w", root, err)
	}
	m.logger.Infof("Registered %d shader(s) from %s", found, root)
	return nil
}

func (m *ShaderManager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	decl, err := ParseShaderDeclaration(string(data))
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m.mu.Lock()
	if prev, ok := m.files[abs]; ok && prev != decl.Name {
		// The file now declares a different shader; the old name has
		// no source backing it anymore.
		m.removeShaderLocked(prev)
	}
	m.invalidateLocked(decl.Name)
	m.decls[decl.Name] = decl
	m.files[abs] = decl.Name
	m.mu.Unlock()
	return nil
}

// Register adds a declaration directly, without a backing file.
func (m *ShaderManager) Register(decl *ShaderDeclaration) {
	m.mu.Lock()
	m.invalidateLocked(decl.Name)
	m.decls[decl.Name] = decl
	m.mu.Unlock()
}

// Declaration returns the parsed declaration of a registered shader.
func (m *ShaderManager) Declaration(name string) (*ShaderDeclaration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decls[name]
	return d, ok
}

func moduleKey(name, pass string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(pass))
	return h.Sum64()
}

// Modules returns the compiled module set of a shader pass, compiling
// it on first request. Pass "" selects the default pass.
func (m *ShaderManager) Modules(name, pass string) (*ShaderModules, error) {
	key := moduleKey(name, pass)

	m.mu.RLock()
	cached, ok := m.cache[key]
	decl := m.decls[name]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if decl == nil {
		return nil, fmt.Errorf("unknown shader %q", name)
	}
	shaderPass := decl.Pass(pass)
	if shaderPass == nil {
		return nil, fmt.Errorf("shader %q has no pass %q", name, pass)
	}

	modules, err := m.compilePass(decl, shaderPass)
	if err != nil {
		m.mu.Lock()
		m.errors[name] = err
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	m.cache[key] = modules
	delete(m.errors, name)
	m.mu.Unlock()
	return modules, nil
}

// compilePass compiles every stage of a pass concurrently and fails
// if any stage fails.
func (m *ShaderManager) compilePass(decl *ShaderDeclaration, pass *ShaderPass) (*ShaderModules, error) {
	prelude := m.compiler.Prelude()
	results := make([]CompiledStage, len(pass.Stages))
	errs := make([]error, len(pass.Stages))

	var wg sync.WaitGroup
	for i := range pass.Stages {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stage := &pass.Stages[i]
			module, err := m.compiler.Compile(ShaderCompilerInput{
				Name:       decl.Name,
				Pass:       pass.Name,
				Stage:      stage.Kind,
				Source:     decl.StageSource(prelude, pass, stage),
				EntryPoint: "main",
			})
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = CompiledStage{Kind: stage.Kind, Module: module}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			m.logger.Errorf("Failed to compile shader %q pass %q stage %s: %v",
				decl.Name, pass.Name, pass.Stages[i].Kind, err)
			return nil, err
		}
	}
	m.logger.Debugf("Compiled shader %q pass %q (%d stage(s))", decl.Name, pass.Name, len(results))
	return &ShaderModules{Name: decl.Name, Pass: pass.Name, Stages: results}, nil
}

// invalidateLocked drops cached modules of a shader so the next
// Modules call recompiles. Runs against the currently registered
// declaration, so it must be called before a replacement is stored or
// cache entries for removed passes survive. Caller holds mu.
func (m *ShaderManager) invalidateLocked(name string) {
	decl := m.decls[name]
	if decl == nil {
		return
	}
	for _, pass := range decl.Passes {
		delete(m.cache, moduleKey(name, pass.Name))
	}
}

// removeShaderLocked drops a shader's declaration, cached modules and
// recorded failure. Caller holds mu.
func (m *ShaderManager) removeShaderLocked(name string) {
	m.invalidateLocked(name)
	delete(m.decls, name)
	delete(m.errors, name)
}

// Watch starts hot reload over the directories registered shaders
// were loaded from. Edited files are reparsed in the background; a
// broken edit is logged and the previous declaration stays live.
func (m *ShaderManager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start shader watcher: %w", err)
	}
	dirs := map[string]bool{}
	for path := range m.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch shader directory %s: %w", dir, err)
		}
	}
	m.watcher = watcher
	m.watchWg.Add(1)
	go m.watchLoop(watcher)
	return nil
}

func (m *ShaderManager) watchLoop(watcher *fsnotify.Watcher) {
	defer m.watchWg.Done()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ShaderFileExtension) {
				continue
			}
			if err := m.loadFile(event.Name); err != nil {
				m.logger.Errorf("Shader reload of %s failed, keeping previous modules: %v", event.Name, err)
				continue
			}
			m.logger.Infof("Reloaded shader %s", event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warnf("Shader watcher: %v", err)
		}
	}
}

// Close stops the watcher if one is running.
func (m *ShaderManager) Close() {
	m.mu.Lock()
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if watcher != nil {
		watcher.Close()
		m.watchWg.Wait()
	}
}

// pkg/env/types.go
package env

// Library represents a found library file
type Library struct {
	Name     string // Library name (e.g., "tsk")
	Path     string // Absolute path to library file
	Type     string // Extension: ".so", ".dylib"
	IsStatic bool   // True for .a files
}

// PathRef points at a directory or file, either inside a staged component
// or provided by the system.
type PathRef struct {
	Component string `yaml:"component,omitempty" toml:"component" json:"component,omitempty"`
	Sub       string `yaml:"sub,omitempty" toml:"sub" json:"sub,omitempty"`
	System    string `yaml:"system,omitempty" toml:"system" json:"system,omitempty"`
}

// Binding derives one runtime variable from a list of paths
type Binding struct {
	Name  string    `yaml:"name" toml:"name" json:"name"`
	Paths []PathRef `yaml:"paths" toml:"paths" json:"paths"`
	// Template wraps the joined path list; "{paths}" is replaced by it
	Template string `yaml:"template,omitempty" toml:"template" json:"template,omitempty"`
	// ExpectLibraries are checked for in the resolved directories
	ExpectLibraries []string `yaml:"expect_libraries,omitempty" toml:"expect_libraries" json:"expect_libraries,omitempty"`
}

// PlatformBindings is one row of the runtime table
type PlatformBindings struct {
	Match []string  `yaml:"match" toml:"match" json:"match"` // os/arch patterns
	Vars  []Binding `yaml:"vars" toml:"vars" json:"vars"`
}

// ConfigFile names the application's runtime config, relative to a component
type ConfigFile struct {
	Component string `yaml:"component" toml:"component" json:"component"`
	Path      string `yaml:"path" toml:"path" json:"path"`
}

// RuntimeTable maps OS x arch onto the variables a launched application needs
type RuntimeTable struct {
	ConfigFile ConfigFile         `yaml:"config_file" toml:"config_file" json:"config_file"`
	Platforms  []PlatformBindings `yaml:"platforms" toml:"platforms" json:"platforms"`
}

// Var is one composed environment variable
type Var struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConfigPatch appends lines to a file
type ConfigPatch struct {
	Path  string   `json:"path"`
	Lines []string `json:"lines"`
}

// RuntimeEnvironment is the result of composition
type RuntimeEnvironment struct {
	Vars    []Var         `json:"vars"`
	Patches []ConfigPatch `json:"patches"`
}

package scene

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"gyroview/internal/geom"
)

// litVS/litFS: one directional light plus ambient and a Blinn-Phong highlight. The sampler is
// named texture0 so raylib binds the albedo map itself; untextured materials sample the 1x1
// white default texture.
const (
	litVS = `#version 330
in vec3 vertexPosition;
in vec2 vertexTexCoord;
in vec3 vertexNormal;
uniform mat4 matProjection;
uniform mat4 matView;
uniform mat4 matModel;
uniform mat4 matNormal;
out vec3 fragPosition;
out vec2 fragTexCoord;
out vec3 fragNormal;
void main() {
  vec4 worldPos = matModel * vec4(vertexPosition, 1.0);
  fragPosition = worldPos.xyz;
  fragTexCoord = vertexTexCoord;
  fragNormal = normalize(vec3(matNormal * vec4(vertexNormal, 0.0)));
  gl_Position = matProjection * matView * worldPos;
}
`
	litFS = `#version 330
in vec3 fragPosition;
in vec2 fragTexCoord;
in vec3 fragNormal;
uniform sampler2D texture0;
uniform vec4 colDiffuse;
uniform vec3 viewPos;
uniform vec3 lightDir;
uniform vec4 ambient;
uniform vec3 lightColor;
uniform float lightIntensity;
uniform float specularPower;
uniform float specularStrength;
out vec4 finalColor;
void main() {
  vec4 tint = texture(texture0, fragTexCoord) * colDiffuse;
  vec3 N = normalize(fragNormal);
  if (!gl_FrontFacing) N = -N;
  vec3 L = normalize(lightDir);
  vec3 V = normalize(viewPos - fragPosition);
  float NdotL = max(dot(N, L), 0.0);
  vec3 diffuse = tint.rgb * NdotL * lightColor * lightIntensity;
  vec3 amb = ambient.rgb * tint.rgb;
  vec3 H = normalize(L + V);
  float spec = pow(max(dot(N, H), 0.0), specularPower) * specularStrength;
  vec3 specular = lightColor * spec * (NdotL > 0.0 ? 1.0 : 0.0);
  finalColor = vec4(amb + diffuse + specular, tint.a);
}
`
)

var (
	ambientColor = [4]float32{0.35, 0.35, 0.38, 1.0}
	lightColor   = [3]float32{1.0, 0.98, 0.95}
)

const (
	lightIntensity   = float32(0.8)
	specularPower    = float32(32.0)
	specularStrength = float32(0.25)
)

// shading owns the lit shader every asset material draws with. It is loaded on first use so
// the GL context exists by then.
type shading struct {
	shader rl.Shader
	loaded bool
	failed bool

	viewPosLoc int32
	lightLoc   int32
}

// get returns the lit shader, or false when it could not be compiled (raylib's default shader
// is used then).
func (sh *shading) get() (rl.Shader, bool) {
	if sh.loaded {
		return sh.shader, true
	}
	if sh.failed {
		return rl.Shader{}, false
	}
	shader := rl.LoadShaderFromMemory(litVS, litFS)
	if !rl.IsShaderValid(shader) {
		sh.failed = true
		return rl.Shader{}, false
	}
	sh.shader = shader
	sh.loaded = true
	sh.viewPosLoc = rl.GetShaderLocation(shader, "viewPos")
	sh.lightLoc = rl.GetShaderLocation(shader, "lightDir")

	amb := ambientColor
	col := lightColor
	if loc := rl.GetShaderLocation(shader, "ambient"); loc >= 0 {
		rl.SetShaderValueV(shader, loc, amb[:], rl.ShaderUniformVec4, 1)
	}
	if loc := rl.GetShaderLocation(shader, "lightColor"); loc >= 0 {
		rl.SetShaderValueV(shader, loc, col[:], rl.ShaderUniformVec3, 1)
	}
	if loc := rl.GetShaderLocation(shader, "lightIntensity"); loc >= 0 {
		rl.SetShaderValue(shader, loc, []float32{lightIntensity}, rl.ShaderUniformFloat)
	}
	if loc := rl.GetShaderLocation(shader, "specularPower"); loc >= 0 {
		rl.SetShaderValue(shader, loc, []float32{specularPower}, rl.ShaderUniformFloat)
	}
	if loc := rl.GetShaderLocation(shader, "specularStrength"); loc >= 0 {
		rl.SetShaderValue(shader, loc, []float32{specularStrength}, rl.ShaderUniformFloat)
	}
	return shader, true
}

// apply sets the per-frame uniforms (cgo-safe: local arrays).
func (sh *shading) apply(viewPos, lightDir geom.Vec3) {
	if !sh.loaded {
		return
	}
	vp := [3]float32{viewPos.X, viewPos.Y, viewPos.Z}
	ld := [3]float32{lightDir.X, lightDir.Y, lightDir.Z}
	if sh.viewPosLoc >= 0 {
		rl.SetShaderValueV(sh.shader, sh.viewPosLoc, vp[:], rl.ShaderUniformVec3, 1)
	}
	if sh.lightLoc >= 0 {
		rl.SetShaderValueV(sh.shader, sh.lightLoc, ld[:], rl.ShaderUniformVec3, 1)
	}
}

func (sh *shading) unload() {
	if sh.loaded {
		rl.UnloadShader(sh.shader)
	}
	sh.loaded = false
}

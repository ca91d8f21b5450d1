package simulation

import (
	"math"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
)

// The functions in this file evaluate the WGSL kernels in shaders/ texel by texel on the software
// backend. They read their inputs and uniforms in the same order the shaders bind them.

var transparent = [4]float32{}

// cpuInit writes the seeded position (mode 0) or auxiliary value (mode 1) of the particle at (x, y).
func cpuInit(ctx pipeline.KernelContext, x, y int) [4]float32 {
	side := int(ctx.Uniform(0))
	mode := ctx.Uniform(1)
	seed := uint32(ctx.Uniform(2))
	radius := ctx.Uniform(3)
	i := uint32(common.TexelToIndex(x, y, max(side, 1)))

	r := func(k uint32) float32 {
		return common.HashUnit(i*3 + k + seed*7919 + uint32(mode)*104729)
	}
	if mode == SeedModeAuxiliary {
		return [4]float32{r(0), r(1), r(2), 1}
	}
	theta := 2 * math.Pi * float64(r(0))
	z := 2*float64(r(1)) - 1
	rr := float64(radius) * math.Cbrt(float64(r(2)))
	ring := math.Sqrt(max(1-z*z, 0)) * rr
	return [4]float32{float32(ring * math.Cos(theta)), float32(ring * math.Sin(theta)), float32(z * rr), 1}
}

// cpuCopy writes input 0 verbatim.
func cpuCopy(ctx pipeline.KernelContext, x, y int) [4]float32 {
	return ctx.Load(0, x, y)
}

// cpuVelocity integrates the force rule from (velocity, position, auxiliary).
func cpuVelocity(ctx pipeline.KernelContext, x, y int) [4]float32 {
	vel, pos, aux := ctx.Load(0, x, y), ctx.Load(1, x, y), ctx.Load(2, x, y)
	dt, damping := ctx.Uniform(1), ctx.Uniform(3)
	attraction, swirl, maxSpeed := ctx.Uniform(4), ctx.Uniform(5), ctx.Uniform(6)

	pull := attraction * (0.5 + aux[0])
	spin := swirl * (0.5 + aux[1])
	force := [3]float32{
		-pos[0]*pull + pos[2]*spin,
		-pos[1] * pull,
		-pos[2]*pull - pos[0]*spin,
	}
	v := [3]float32{
		vel[0]*damping + force[0]*dt,
		vel[1]*damping + force[1]*dt,
		vel[2]*damping + force[2]*dt,
	}
	if speed := float32(math.Sqrt(float64(common.Dot3(v, v)))); speed > maxSpeed && speed > 0 {
		s := maxSpeed / speed
		v = [3]float32{v[0] * s, v[1] * s, v[2] * s}
	}
	return [4]float32{v[0], v[1], v[2], 1}
}

// cpuIntegrate advances position by the new velocity.
func cpuIntegrate(ctx pipeline.KernelContext, x, y int) [4]float32 {
	pos, vel := ctx.Load(0, x, y), ctx.Load(1, x, y)
	dt := ctx.Uniform(1)
	return [4]float32{pos[0] + vel[0]*dt, pos[1] + vel[1]*dt, pos[2] + vel[2]*dt, 1}
}

// cpuEnvironment ray-casts the environment sphere and reflects the radiance cube off it.
func cpuEnvironment(ctx pipeline.KernelContext, x, y int) [4]float32 {
	_, _, w, h := ctx.Viewport()
	inv := uniformMat4(ctx, offCameraInvViewProj)
	eye := [3]float32{ctx.Uniform(offCameraPosition), ctx.Uniform(offCameraPosition + 1), ctx.Uniform(offCameraPosition + 2)}
	radius := ctx.Uniform(offEnvSphereRadius)

	dir := viewRay(inv, ndc(x, y, w, h), eye)
	n, ok := hitSphere(eye, dir, radius)
	if !ok {
		return transparent
	}
	r := reflect3(dir, n)
	c := ctx.SampleCube(0, r)
	return [4]float32{c[0], c[1], c[2], 1}
}

// cpuParticles splats every particle at its interpolated position and shades the nearest one.
func cpuParticles(ctx pipeline.KernelContext, x, y int) [4]float32 {
	_, _, w, h := ctx.Viewport()
	vp := uniformMat4(ctx, offCameraViewProj)
	shadowMatrix := uniformMat4(ctx, offParticleShadow)
	p := ctx.Uniform(offParticleParams)
	side := int(ctx.Uniform(offParticleParams + 1))
	size := ctx.Uniform(offParticleParams + 2)
	shadowEnabled := ctx.Uniform(offParticleParams+3) > 0

	hit, ok := nearestSplat(ctx, vp, p, side, size, x, y, w, h)
	if !ok {
		return transparent
	}
	// Sprite-space normal of a sphere impostor.
	n := [3]float32{hit.dx, -hit.dy, float32(math.Sqrt(float64(max(1-hit.dx*hit.dx-hit.dy*hit.dy, 0))))}
	aux := ctx.Load(2, hit.tx, hit.ty)
	irr := ctx.SampleCube(5, n)
	rad := ctx.SampleCube(4, reflect3([3]float32{0, 0, -1}, n))

	ew, eh := ctx.InputSize(3)
	env := ctx.Load(3, int((n[0]*0.5+0.5)*float32(ew)), int((0.5-n[1]*0.5)*float32(eh)))

	light := float32(1)
	if shadowEnabled {
		light = shadowFactor(ctx, shadowMatrix, hit.world)
	}
	var c [4]float32
	for i := range 3 {
		base := 0.35 + 0.65*aux[i]
		c[i] = (base*irr[i]*light + 0.25*rad[i] + 0.2*env[i]*env[3])
	}
	c[3] = 1
	return c
}

// cpuShadow writes the nearest interpolated particle depth seen from the light.
func cpuShadow(ctx pipeline.KernelContext, x, y int) [4]float32 {
	_, _, w, h := ctx.Viewport()
	m := uniformMat4(ctx, 0)
	p := ctx.Uniform(offShadowParams)
	side := int(ctx.Uniform(offShadowParams + 1))
	size := ctx.Uniform(offShadowParams + 2)

	hit, ok := nearestSplat(ctx, m, p, side, size, x, y, w, h)
	if !ok {
		return [4]float32{1, 1, 1, 1}
	}
	return [4]float32{hit.depth, hit.depth, hit.depth, 1}
}

// cpuInset scales input 0 into the viewport.
func cpuInset(ctx pipeline.KernelContext, x, y int) [4]float32 {
	_, _, w, h := ctx.Viewport()
	iw, ih := ctx.InputSize(0)
	return ctx.Load(0, x*iw/max(w, 1), y*ih/max(h, 1))
}

type splat struct {
	tx, ty int
	dx, dy float32
	depth  float32
	world  [3]float32
}

// nearestSplat finds the particle whose screen-space disc covers pixel (x, y) closest to the camera.
// Positions are mix(target, current, p) of inputs 0 and 1.
func nearestSplat(ctx pipeline.KernelContext, m [16]float32, p float32, side int, size float32, x, y, w, h int) (splat, bool) {
	best := splat{depth: float32(math.Inf(1))}
	found := false
	pix := ndc(x, y, w, h)
	// Rows 0 and 1 of a view-projection have the projection's focal lengths as their lengths.
	focalX := float32(math.Sqrt(float64(m[0]*m[0] + m[4]*m[4] + m[8]*m[8])))
	focalY := float32(math.Sqrt(float64(m[1]*m[1] + m[5]*m[5] + m[9]*m[9])))
	for ty := range side {
		for tx := range side {
			a, b := ctx.Load(0, tx, ty), ctx.Load(1, tx, ty)
			world := [3]float32{a[0] + (b[0]-a[0])*p, a[1] + (b[1]-a[1])*p, a[2] + (b[2]-a[2])*p}
			clip := common.TransformVec4(m[:], [4]float32{world[0], world[1], world[2], 1})
			if clip[3] <= 0 {
				continue
			}
			depth := clip[2] / clip[3]
			if depth < 0 || depth > 1 || depth >= best.depth {
				continue
			}
			rx, ry := size*focalX/clip[3], size*focalY/clip[3]
			if rx <= 0 || ry <= 0 {
				continue
			}
			dx := (pix[0] - clip[0]/clip[3]) / rx
			dy := (pix[1] - clip[1]/clip[3]) / ry
			if dx*dx+dy*dy > 1 {
				continue
			}
			best = splat{tx: tx, ty: ty, dx: dx, dy: -dy, depth: depth, world: world}
			found = true
		}
	}
	return best, found
}

// shadowFactor compares a world position against the shadow capture bound at input 6.
func shadowFactor(ctx pipeline.KernelContext, m [16]float32, world [3]float32) float32 {
	clip := common.TransformVec4(m[:], [4]float32{world[0], world[1], world[2], 1})
	if clip[3] <= 0 {
		return 1
	}
	sw, sh := ctx.InputSize(6)
	u := (clip[0]/clip[3])*0.5 + 0.5
	v := 0.5 - (clip[1]/clip[3])*0.5
	stored := ctx.Load(6, int(u*float32(sw)), int(v*float32(sh)))[0]
	if clip[2]/clip[3]-0.001 > stored {
		return 0.4
	}
	return 1
}

func uniformMat4(ctx pipeline.KernelContext, off int) [16]float32 {
	var m [16]float32
	for i := range m {
		m[i] = ctx.Uniform(off + i)
	}
	return m
}

// ndc maps a texel center to normalized device coordinates with y up.
func ndc(x, y, w, h int) [2]float32 {
	return [2]float32{
		(float32(x)+0.5)/float32(max(w, 1))*2 - 1,
		1 - (float32(y)+0.5)/float32(max(h, 1))*2,
	}
}

// viewRay returns the normalized world-space direction through an NDC point.
func viewRay(inv [16]float32, p [2]float32, eye [3]float32) [3]float32 {
	far := common.TransformVec4(inv[:], [4]float32{p[0], p[1], 1, 1})
	if far[3] != 0 {
		far = [4]float32{far[0] / far[3], far[1] / far[3], far[2] / far[3], 1}
	}
	return common.Normalize3([3]float32{far[0] - eye[0], far[1] - eye[1], far[2] - eye[2]})
}

// hitSphere intersects a ray with the origin-centered sphere and returns the surface normal.
func hitSphere(origin, dir [3]float32, radius float32) ([3]float32, bool) {
	b := common.Dot3(origin, dir)
	c := common.Dot3(origin, origin) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return [3]float32{}, false
	}
	t := -b - float32(math.Sqrt(float64(disc)))
	if t < 0 {
		return [3]float32{}, false
	}
	hit := [3]float32{origin[0] + dir[0]*t, origin[1] + dir[1]*t, origin[2] + dir[2]*t}
	return common.Normalize3(hit), true
}

func reflect3(d, n [3]float32) [3]float32 {
	k := 2 * common.Dot3(d, n)
	return [3]float32{d[0] - k*n[0], d[1] - k*n[1], d[2] - k*n[2]}
}

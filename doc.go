// Package glaze is a fluent effect-pipeline and brush library for
// [Ebitengine].
//
// Glaze composes graphics effects — blur, saturation, opacity, tint, blends,
// tiling, solid color — into a reusable [Brush] through an immutable
// [Pipeline] builder. Pipelines hold only deferred descriptions; all
// platform resource acquisition happens in the terminal [Pipeline.Build]
// call.
//
// # Quick start
//
//	brush, err := glaze.FromColor(glaze.Color{R: 1, A: 1}).
//		Opacity(0.5).
//		Build(ctx)
//	if err != nil {
//		// ...
//	}
//	// each frame:
//	brush.Paint(screen)
//
// # Pipelines
//
// Start a pipeline with [FromColor], [FromImage], [FromTiles],
// [FromBackdropBrush], or [FromHostBackdropBrush], then chain composition
// calls. Every call returns a new Pipeline and leaves the receiver valid,
// so a base pipeline can branch into divergent pipelines:
//
//	base := glaze.FromImage("assets/photo.png", glaze.CacheDefault, glaze.DPISource)
//	soft := base.Blur(8)
//	gray := base.Saturation(0)
//
// Amount arguments are validated at the call: Saturation and Opacity take
// [0, 1], Mix and CrossFade ratios must lie strictly inside (0, 1).
// Violations panic with [RangeError] immediately rather than surfacing at
// build time.
//
// # Backdrops and acrylic
//
// [FromBackdropBrush] and [FromHostBackdropBrush] sample what is visually
// behind a surface. The expensive sample resources are cached per display
// context and shared between pipelines built on the same context.
// [FromBackdropAcrylic] and [FromHostBackdropAcrylic] compose the familiar
// blurred-and-tinted acrylic stack in one call.
//
// # Animation
//
// Brushes keep the parameter paths declared by their pipeline animatable:
//
//	paths := brush.Parameters() // e.g. ["blur3.Amount"]
//	player, _ := glaze.Animate().
//		Parameter(paths[0], 0, 0.5, ease.OutQuad).
//		Start(brush)
//	// each frame:
//	player.Update(dt)
//
// # Key features
//
// Descriptions are serializable ([Pipeline.Describe], [EncodeDescription])
// and pipelines can be declared in HCL config files (the config
// subpackage). Image loading is DPI-aware with a built-in decode cache; a
// missing or undecodable image degrades to a transparent placeholder
// instead of failing the build.
//
// [Ebitengine]: https://ebitengine.org
package glaze

package synth

// HelperFileName is the output file name of the helper module.
const HelperFileName = "wasmpack-helper.js"

const helperCommon = `export class WasmInstantiationError extends Error {
  constructor(asset, cause) {
    super("failed to instantiate " + asset + ": " + (cause && cause.message ? cause.message : String(cause)));
    this.name = "WasmInstantiationError";
    this.asset = asset;
    this.cause = cause;
  }
}

export async function instantiate(asset, bytes, importObject) {
  try {
    const { instance } = await WebAssembly.instantiate(await bytes, importObject);
    return instance.exports;
  } catch (err) {
    throw new WasmInstantiationError(asset, err);
  }
}
`

const helperBrowser = helperCommon + `
export async function readBytes(url) {
  const res = await fetch(url);
  if (!res.ok) {
    throw new Error("fetch " + url + ": " + res.status + " " + res.statusText);
  }
  return new Uint8Array(await res.arrayBuffer());
}
`

const helperNode = `import { readFile } from "node:fs/promises";

` + helperCommon + `
export async function readBytes(url) {
  const href = String(url);
  if (href.startsWith("data:")) {
    return new Uint8Array(Buffer.from(href.slice(href.indexOf(",") + 1), "base64"));
  }
  return new Uint8Array(await readFile(url));
}
`

// HelperSource returns the runtime helper module for target. Instantiation
// failures reject with WasmInstantiationError so they travel the importers'
// await chain like any other rejected dependency.
func HelperSource(target Target) string {
	if target == TargetNode {
		return helperNode
	}
	return helperBrowser
}

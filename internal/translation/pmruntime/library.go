package pmruntime

// internalLibraryFiles are the runtime helpers exported once per
// destination: the header defining the vector types and the Runtime class,
// plus its translation unit. Generated per-class files include the header
// and link against this unit.
func internalLibraryFiles(packageName string) map[string]string {
	return map[string]string{
		"jni/ParallelMERuntime.hpp": runtimeHeader,
		"jni/ParallelMERuntime.cpp": runtimeSource,
	}
}

const runtimeHeader = `/*
 * Code generated by the parlift compiler. Manual changes will be
 * overwritten on the next compilation.
 */

#ifndef PARALLELME_RUNTIME_HPP
#define PARALLELME_RUNTIME_HPP

#include <cstdint>
#include <functional>
#include <map>
#include <string>
#include <vector>

namespace parallelme {

struct float3 {
	float s0, s1, s2;
};

struct float4 {
	float s0, s1, s2, s3;
};

template <typename T>
class ImageBuffer {
public:
	ImageBuffer() : width_(0), height_(0) {}
	ImageBuffer(uint32_t width, uint32_t height)
		: width_(width), height_(height), data_(width * height) {}

	uint32_t width() const { return width_; }
	uint32_t height() const { return height_; }
	T &at(uint32_t x, uint32_t y) { return data_[y * width_ + x]; }
	const T &at(uint32_t x, uint32_t y) const { return data_[y * width_ + x]; }

private:
	uint32_t width_;
	uint32_t height_;
	std::vector<T> data_;
};

// Runtime owns every buffer of one wrapper instance and schedules parallel
// loops over a worker pool sized to the available cores.
class Runtime {
public:
	Runtime();
	~Runtime();

	ImageBuffer<float3> &createImage3(const std::string &key, uint32_t width, uint32_t height);
	ImageBuffer<float4> &createImage4(const std::string &key, uint32_t width, uint32_t height);
	ImageBuffer<float3> &image3(const std::string &key);
	ImageBuffer<float4> &image4(const std::string &key);

	template <typename T>
	void createArray(const std::string &key, const void *data, size_t length) {
		auto &buf = arrays<T>()[key];
		buf.assign(static_cast<const T *>(data), static_cast<const T *>(data) + length);
	}

	template <typename T>
	std::vector<T> &array(const std::string &key) {
		return arrays<T>()[key];
	}

	template <typename T>
	void replaceArray(const std::string &key, std::vector<T> &replacement) {
		arrays<T>()[key].swap(replacement);
	}

	// promote moves a map output over its source image.
	void promote(const std::string &from, const std::string &to);

	template <typename T>
	void storeResult(const std::string &key, T value) {
		std::vector<T> result(1, value);
		replaceArray<T>(key + "!result", result);
	}

	void storeFiltered(const std::string &key, std::vector<float3> &kept) {
		replaceArray<float3>(key + "!filtered", kept);
	}
	void storeFiltered(const std::string &key, std::vector<float4> &kept) {
		replaceArray<float4>(key + "!filtered", kept);
	}

	// parallelFor runs body(i) for i in [0, count) across the worker pool
	// and returns when every index has completed.
	void parallelFor(uint32_t count, const std::function<void(uint32_t)> &body);

	static uint32_t tileSize(uint32_t length);

private:
	template <typename T>
	std::map<std::string, std::vector<T>> &arrays();

	std::map<std::string, ImageBuffer<float3>> images3_;
	std::map<std::string, ImageBuffer<float4>> images4_;
	std::map<std::string, std::vector<short>> shortArrays_;
	std::map<std::string, std::vector<int>> intArrays_;
	std::map<std::string, std::vector<float>> floatArrays_;
	std::map<std::string, std::vector<float3>> float3Arrays_;
	std::map<std::string, std::vector<float4>> float4Arrays_;
	unsigned workerCount_;
};

template <> inline std::map<std::string, std::vector<short>> &Runtime::arrays<short>() { return shortArrays_; }
template <> inline std::map<std::string, std::vector<int>> &Runtime::arrays<int>() { return intArrays_; }
template <> inline std::map<std::string, std::vector<float>> &Runtime::arrays<float>() { return floatArrays_; }
template <> inline std::map<std::string, std::vector<float3>> &Runtime::arrays<float3>() { return float3Arrays_; }
template <> inline std::map<std::string, std::vector<float4>> &Runtime::arrays<float4>() { return float4Arrays_; }

} // namespace parallelme

#endif
`

const runtimeSource = `/*
 * Code generated by the parlift compiler. Manual changes will be
 * overwritten on the next compilation.
 */

#include "ParallelMERuntime.hpp"

#include <cmath>
#include <thread>

namespace parallelme {

Runtime::Runtime() {
	workerCount_ = std::thread::hardware_concurrency();
	if (workerCount_ == 0)
		workerCount_ = 1;
}

Runtime::~Runtime() = default;

ImageBuffer<float3> &Runtime::createImage3(const std::string &key, uint32_t width, uint32_t height) {
	images3_[key] = ImageBuffer<float3>(width, height);
	return images3_[key];
}

ImageBuffer<float4> &Runtime::createImage4(const std::string &key, uint32_t width, uint32_t height) {
	images4_[key] = ImageBuffer<float4>(width, height);
	return images4_[key];
}

ImageBuffer<float3> &Runtime::image3(const std::string &key) {
	return images3_[key];
}

ImageBuffer<float4> &Runtime::image4(const std::string &key) {
	return images4_[key];
}

void Runtime::promote(const std::string &from, const std::string &to) {
	if (images3_.count(from)) {
		images3_[to] = images3_[from];
		images3_.erase(from);
	}
	if (images4_.count(from)) {
		images4_[to] = images4_[from];
		images4_.erase(from);
	}
}

void Runtime::parallelFor(uint32_t count, const std::function<void(uint32_t)> &body) {
	if (count == 0)
		return;
	unsigned workers = workerCount_;
	if (workers > count)
		workers = count;
	if (workers <= 1) {
		for (uint32_t i = 0; i < count; ++i)
			body(i);
		return;
	}

	std::vector<std::thread> pool;
	pool.reserve(workers);
	uint32_t chunk = (count + workers - 1) / workers;
	for (unsigned w = 0; w < workers; ++w) {
		uint32_t start = w * chunk;
		uint32_t end = start + chunk;
		if (end > count)
			end = count;
		if (start >= end)
			break;
		pool.emplace_back([start, end, &body]() {
			for (uint32_t i = start; i < end; ++i)
				body(i);
		});
	}
	for (auto &worker : pool)
		worker.join();
}

uint32_t Runtime::tileSize(uint32_t length) {
	uint32_t size = (uint32_t) std::sqrt((double) length);
	return size == 0 ? 1 : size;
}

} // namespace parallelme
`
